// Package batch writes record lists in transactional chunks.
//
// Each chunk is committed atomically, but there is no atomicity across
// chunks: when chunk N fails, chunks before it stay committed and chunks
// after it are never attempted. Callers get a *PartialWriteError describing
// exactly where the write stopped.
package batch

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noctisdark/mazenrecords-sst/application/ports"
	"github.com/noctisdark/mazenrecords-sst/pkg/observability"
)

// MaxBatchSize is the largest chunk DynamoDB accepts in one transaction.
const MaxBatchSize = ports.MaxTransactItems

// Result summarizes a completed bulk write.
type Result struct {
	Chunks    int
	Committed int
}

// PartialWriteError reports a bulk write that stopped at a failed chunk.
type PartialWriteError struct {
	// CommittedChunks chunks (CommittedRecords records) are durable.
	CommittedChunks  int
	CommittedRecords int
	// FailedChunk is the 1-based index of the chunk that failed.
	FailedChunk int
	TotalChunks int
	Err         error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("chunk %d of %d failed after %d records committed: %v",
		e.FailedChunk, e.TotalChunks, e.CommittedRecords, e.Err)
}

func (e *PartialWriteError) Unwrap() error { return e.Err }

// AsPartialWrite extracts a *PartialWriteError from err.
func AsPartialWrite(err error) (*PartialWriteError, bool) {
	var pw *PartialWriteError
	ok := errors.As(err, &pw)
	return pw, ok
}

// Writer commits records through a RecordStore chunk by chunk.
type Writer struct {
	store     ports.RecordStore
	chunkSize int
	logger    *zap.Logger
	metrics   *observability.Collector
}

// NewWriter creates a writer. chunkSize is clamped to [1, MaxBatchSize].
func NewWriter(store ports.RecordStore, chunkSize int, logger *zap.Logger, metrics *observability.Collector) *Writer {
	if chunkSize <= 0 || chunkSize > MaxBatchSize {
		chunkSize = MaxBatchSize
	}
	return &Writer{
		store:     store,
		chunkSize: chunkSize,
		logger:    logger,
		metrics:   metrics,
	}
}

// WriteAll maps items to records and commits them in chunks, in order.
// mapper runs for every item of a chunk right before that chunk is sent,
// so side effects of the mapper cover exactly the attempted chunks.
func WriteAll[T any](ctx context.Context, w *Writer, items []T, mapper func(T) (ports.Record, error)) (Result, error) {
	total := (len(items) + w.chunkSize - 1) / w.chunkSize
	var res Result

	for start := 0; start < len(items); start += w.chunkSize {
		end := min(start+w.chunkSize, len(items))
		chunk := make([]ports.Record, 0, end-start)
		for _, item := range items[start:end] {
			rec, err := mapper(item)
			if err != nil {
				return res, w.fail(res, total, fmt.Errorf("map record %d: %w", len(chunk)+start, err))
			}
			chunk = append(chunk, rec)
		}

		if err := w.store.TransactPut(ctx, chunk); err != nil {
			w.metrics.RecordChunk(observability.StatusError, len(chunk))
			return res, w.fail(res, total, err)
		}
		w.metrics.RecordChunk(observability.StatusSuccess, len(chunk))

		res.Chunks++
		res.Committed += len(chunk)
	}

	return res, nil
}

func (w *Writer) fail(res Result, total int, err error) error {
	pw := &PartialWriteError{
		CommittedChunks:  res.Chunks,
		CommittedRecords: res.Committed,
		FailedChunk:      res.Chunks + 1,
		TotalChunks:      total,
		Err:              err,
	}
	w.logger.Error("bulk write stopped",
		zap.Int("committedChunks", pw.CommittedChunks),
		zap.Int("failedChunk", pw.FailedChunk),
		zap.Int("totalChunks", pw.TotalChunks),
		zap.Error(err),
	)
	return pw
}
