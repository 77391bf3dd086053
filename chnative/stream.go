package chnative

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
)

var queryIDCounter uint64

func nextQueryID() string {
	return fmt.Sprintf("chnative-%d-%d", time.Now().UnixNano(), atomic.AddUint64(&queryIDCounter, 1))
}

// QueryStream is a pull-driven iterator over a read query's result batches:
// the caller drives each step by calling Next, one batch per call, until it
// returns false.
type QueryStream struct {
	session *Session
	info    QueryInfo
	token   HookToken
	stats   QueryStatistics

	current  arrow.RecordBatch
	progress *Progress
	err      error
	done     bool
}

// Query issues sql as a read query and returns a stream the caller pulls
// batches from via Next/RecordBatch.
func Query(ctx context.Context, s *Session, sql string) (*QueryStream, error) {
	info := QueryInfo{RequestID: nextQueryID(), SQL: sql, IsInsert: false, StartTime: time.Now()}
	var token HookToken
	if s.hook != nil {
		token = s.hook.OnQueryStart(ctx, info)
	}
	if err := s.StartQuery(ctx, info.RequestID, sql); err != nil {
		if s.hook != nil {
			s.hook.OnQueryEnd(ctx, token, QueryStatistics{}, err)
		}
		return nil, err
	}
	return &QueryStream{session: s, info: info, token: token}, nil
}

// Next advances the stream by calling the session's read loop until a data
// block or end-of-stream arrives. Side-channel packets are skipped; of
// those, only the latest Progress is kept, for Progress. It returns
// false at end-of-stream or on error; callers check Err after a false
// return.
func (qs *QueryStream) Next(ctx context.Context) bool {
	if qs.done {
		return false
	}
	for {
		block, side, err := qs.session.Next()
		if err != nil {
			qs.err = err
			qs.finish(ctx, err)
			return false
		}
		if block == nil && side == nil {
			qs.finish(ctx, nil)
			return false
		}
		if side != nil {
			if side.Progress != nil {
				qs.progress = side.Progress
			}
			continue
		}
		rb := block.RecordBatch()
		qs.stats.RecordBatchIn(rb)
		qs.current = rb
		return true
	}
}

// RecordBatch returns the batch produced by the most recent successful
// call to Next.
func (qs *QueryStream) RecordBatch() arrow.RecordBatch {
	return qs.current
}

// Progress returns the most recently observed Progress counters, or nil
// if none has arrived yet.
func (qs *QueryStream) Progress() *Progress {
	return qs.progress
}

// Err returns the error that ended the stream, if any.
func (qs *QueryStream) Err() error {
	return qs.err
}

// Cancel requests server-side cancellation of the in-flight query. The
// caller must keep calling Next until it returns false: partial results
// up to the cancel point remain valid, but the stream must be drained.
func (qs *QueryStream) Cancel() error {
	return qs.session.Cancel()
}

func (qs *QueryStream) finish(ctx context.Context, err error) {
	qs.done = true
	qs.stats.Duration = time.Since(qs.info.StartTime)
	if qs.session.hook != nil {
		qs.session.hook.OnQueryEnd(ctx, qs.token, qs.stats, err)
	}
}

// InsertWriter accumulates outgoing batches for an INSERT ... FORMAT
// Native statement, matching the server's announced schema.
type InsertWriter struct {
	session *Session
	info    QueryInfo
	token   HookToken
	stats   QueryStatistics
	schema  *Block
	err     error
}

// Insert issues an INSERT statement and waits for the server's schema
// announcement, after which the caller writes batches via Write and
// finally calls Close.
func Insert(ctx context.Context, s *Session, sql string) (*InsertWriter, error) {
	info := QueryInfo{RequestID: nextQueryID(), SQL: sql, IsInsert: true, StartTime: time.Now()}
	var token HookToken
	if s.hook != nil {
		token = s.hook.OnQueryStart(ctx, info)
	}
	schema, err := s.StartInsert(ctx, info.RequestID, sql)
	if err != nil {
		if s.hook != nil {
			s.hook.OnQueryEnd(ctx, token, QueryStatistics{}, err)
		}
		return nil, err
	}
	return &InsertWriter{session: s, info: info, token: token, schema: schema}, nil
}

// Schema returns the column names/types the server announced for this
// insert target.
func (iw *InsertWriter) Schema() *Block {
	return iw.schema
}

// Write sends one batch of rows. columns must match iw.Schema()'s column
// count and types in order.
func (iw *InsertWriter) Write(ctx context.Context, rb arrow.RecordBatch) error {
	if int(rb.NumCols()) != len(iw.schema.Types) {
		return newSchemaError("insert batch has %d columns, schema expects %d", rb.NumCols(), len(iw.schema.Types))
	}
	b := &Block{
		Names:   iw.schema.Names,
		Types:   iw.schema.Types,
		Columns: rb.Columns(),
		Rows:    int(rb.NumRows()),
	}
	if err := iw.session.SendBlock(b); err != nil {
		iw.err = err
		return err
	}
	iw.stats.RecordBatchOut(rb)
	return nil
}

// Close writes the end-of-insert sentinel and waits for EndOfStream.
func (iw *InsertWriter) Close(ctx context.Context) error {
	err := iw.session.FinishInsert()
	if err != nil {
		iw.err = err
	}
	iw.stats.Duration = time.Since(iw.info.StartTime)
	if iw.session.hook != nil {
		iw.session.hook.OnQueryEnd(ctx, iw.token, iw.stats, err)
	}
	return err
}
