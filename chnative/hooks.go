package chnative

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
)

// QueryHook observes the lifecycle of queries and inserts on a Session: a
// start/end pair bracketing each one.
type QueryHook interface {
	OnQueryStart(ctx context.Context, info QueryInfo) HookToken
	OnQueryEnd(ctx context.Context, token HookToken, stats QueryStatistics, err error)
}

// HookToken is opaque state a hook can thread from OnQueryStart through to
// OnQueryEnd (e.g. a span handle).
type HookToken any

// QueryInfo describes a query or insert as it begins.
type QueryInfo struct {
	RequestID string
	SQL       string
	IsInsert  bool
	StartTime time.Time
}

// QueryStatistics accumulates counters over a query or insert's lifetime.
type QueryStatistics struct {
	RowsRead      int64
	BytesRead     int64
	RowsWritten   int64
	BytesWritten  int64
	BatchesRead   int64
	BatchesWritten int64
	Duration      time.Duration
}

// RecordBatchIn accounts for one record batch flowing from server to
// client.
func (s *QueryStatistics) RecordBatchIn(rb arrow.RecordBatch) {
	atomic.AddInt64(&s.RowsRead, rb.NumRows())
	atomic.AddInt64(&s.BytesRead, batchBufferSize(rb))
	atomic.AddInt64(&s.BatchesRead, 1)
}

// RecordBatchOut accounts for one record batch flowing from client to
// server (insert).
func (s *QueryStatistics) RecordBatchOut(rb arrow.RecordBatch) {
	atomic.AddInt64(&s.RowsWritten, rb.NumRows())
	atomic.AddInt64(&s.BytesWritten, batchBufferSize(rb))
	atomic.AddInt64(&s.BatchesWritten, 1)
}

// batchBufferSize sums buffer lengths across all columns in a record
// batch.
func batchBufferSize(rb arrow.RecordBatch) int64 {
	var total int64
	for _, col := range rb.Columns() {
		for _, buf := range col.Data().Buffers() {
			if buf != nil {
				total += int64(buf.Len())
			}
		}
	}
	return total
}

// multiHook fans a single lifecycle out to several hooks, so a Config can
// register e.g. chotel's instrumentation alongside a user-supplied hook.
type multiHook struct {
	hooks []QueryHook
}

func (m multiHook) OnQueryStart(ctx context.Context, info QueryInfo) HookToken {
	tokens := make([]HookToken, len(m.hooks))
	for i, h := range m.hooks {
		tokens[i] = h.OnQueryStart(ctx, info)
	}
	return tokens
}

func (m multiHook) OnQueryEnd(ctx context.Context, token HookToken, stats QueryStatistics, err error) {
	tokens, _ := token.([]HookToken)
	for i, h := range m.hooks {
		var t HookToken
		if i < len(tokens) {
			t = tokens[i]
		}
		h.OnQueryEnd(ctx, t, stats, err)
	}
}
