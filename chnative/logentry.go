package chnative

import (
	"github.com/apache/arrow-go/v18/arrow/array"
)

// LogPriority is the server's syslog-style severity for a Log side-channel
// row: ClickHouse's eight-level server log priority column.
type LogPriority int8

const (
	LogFatal       LogPriority = 1
	LogCritical    LogPriority = 2
	LogError       LogPriority = 3
	LogWarning     LogPriority = 4
	LogNotice      LogPriority = 5
	LogInformation LogPriority = 6
	LogDebug       LogPriority = 7
	LogTrace       LogPriority = 8
)

func (p LogPriority) String() string {
	switch p {
	case LogFatal:
		return "Fatal"
	case LogCritical:
		return "Critical"
	case LogError:
		return "Error"
	case LogWarning:
		return "Warning"
	case LogNotice:
		return "Notice"
	case LogInformation:
		return "Information"
	case LogDebug:
		return "Debug"
	case LogTrace:
		return "Trace"
	default:
		return "Unknown"
	}
}

// LogEntry is one decoded row of a Log side-channel block: a server-side
// diagnostic message emitted while a query runs.
type LogEntry struct {
	HostName string
	QueryID  string
	ThreadID uint64
	Priority LogPriority
	Source   string
	Text     string
}

// DecodeLogEntries extracts structured rows from a Log side-channel block.
// Columns the server didn't include (older revisions may omit host_name or
// thread_id) are left at their zero value rather than erroring, since the
// Log packet's column set isn't part of the negotiated schema.
func DecodeLogEntries(b *Block) []LogEntry {
	if b == nil {
		return nil
	}
	idx := make(map[string]int, len(b.Names))
	for i, name := range b.Names {
		idx[name] = i
	}

	entries := make([]LogEntry, b.Rows)
	for row := 0; row < b.Rows; row++ {
		var e LogEntry
		if i, ok := idx["host_name"]; ok {
			if col, ok := b.Columns[i].(*array.LargeString); ok {
				e.HostName = col.Value(row)
			}
		}
		if i, ok := idx["query_id"]; ok {
			if col, ok := b.Columns[i].(*array.LargeString); ok {
				e.QueryID = col.Value(row)
			}
		}
		if i, ok := idx["thread_id"]; ok {
			if col, ok := b.Columns[i].(*array.Uint64); ok {
				e.ThreadID = col.Value(row)
			}
		}
		if i, ok := idx["priority"]; ok {
			if col, ok := b.Columns[i].(*array.Int8); ok {
				e.Priority = LogPriority(col.Value(row))
			}
		}
		if i, ok := idx["source"]; ok {
			if col, ok := b.Columns[i].(*array.LargeString); ok {
				e.Source = col.Value(row)
			}
		}
		if i, ok := idx["text"]; ok {
			if col, ok := b.Columns[i].(*array.LargeString); ok {
				e.Text = col.Value(row)
			}
		}
		entries[row] = e
	}
	return entries
}
