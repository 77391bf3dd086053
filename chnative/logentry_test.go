package chnative

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/require"
)

func TestDecodeLogEntries(t *testing.T) {
	mem := memory.NewGoAllocator()

	hostB := array.NewLargeStringBuilder(mem)
	hostB.Append("node-1")
	host := hostB.NewArray()
	defer host.Release()

	prioB := array.NewInt8Builder(mem)
	prioB.Append(int8(LogInformation))
	prio := prioB.NewArray()
	defer prio.Release()

	textB := array.NewLargeStringBuilder(mem)
	textB.Append("executing query")
	text := textB.NewArray()
	defer text.Release()

	block := &Block{
		Names:   []string{"host_name", "priority", "text"},
		Types:   []Type{StringType{}, Int8Type{}, StringType{}},
		Columns: []arrow.Array{host, prio, text},
		Rows:    1,
	}

	entries := DecodeLogEntries(block)
	require.Len(t, entries, 1)
	require.Equal(t, "node-1", entries[0].HostName)
	require.Equal(t, LogInformation, entries[0].Priority)
	require.Equal(t, "executing query", entries[0].Text)
}

func TestDecodeLogEntriesNilBlock(t *testing.T) {
	require.Nil(t, DecodeLogEntries(nil))
}
