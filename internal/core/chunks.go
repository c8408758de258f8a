package core

// chunks.go bounds peak memory during ingestion by processing rows in
// fixed-size batches with eager memory reclamation between batches.
//
// The Chunker is an explicit handle scoped to one ingestion; there is no
// process-wide reclamation state, so tests can substitute a no-op or
// instrumented reclaimer freely.

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
)

// DefaultChunkSize is the number of rows processed per batch.
var DefaultChunkSize = 100

// DefaultMaxStoreRows is the hard ceiling on rows accepted for storage.
var DefaultMaxStoreRows = 10000

// DefaultMaxStoreBytes is the hard ceiling on estimated payload size (50MB).
var DefaultMaxStoreBytes int64 = 50 * 1024 * 1024

// MemoryReclaimer signals the runtime to reclaim memory between batches.
// Reclamation is an optimization, never a correctness requirement.
type MemoryReclaimer interface {
	Reclaim()
}

// GCReclaimer forces a collection and returns freed memory to the OS.
type GCReclaimer struct{}

func (GCReclaimer) Reclaim() {
	runtime.GC()
	debug.FreeOSMemory()
}

// NoopReclaimer does nothing. Used in tests and on runtimes where manual
// reclamation is unavailable.
type NoopReclaimer struct{}

func (NoopReclaimer) Reclaim() {}

// ChunkHandler processes one batch of rows. offset is the global index of
// the batch's first row within the full row sequence.
type ChunkHandler func(ctx context.Context, chunk []Row, offset int) error

// Chunker partitions row sequences into fixed-size batches and enforces
// the safe-processing ceiling before any work begins.
type Chunker struct {
	ChunkSize int
	MaxRows   int
	MaxBytes  int64
	Reclaimer MemoryReclaimer
}

// NewChunker returns a Chunker with the default limits and GC reclamation.
func NewChunker() *Chunker {
	return &Chunker{
		ChunkSize: DefaultChunkSize,
		MaxRows:   DefaultMaxStoreRows,
		MaxBytes:  DefaultMaxStoreBytes,
		Reclaimer: GCReclaimer{},
	}
}

// ValidateSize applies the hard ceilings. Inputs at the limit are accepted;
// inputs strictly over it are rejected with a CapacityError. This check
// runs before any transaction begins.
func (c *Chunker) ValidateSize(rows []Row) error {
	if c.MaxRows > 0 && len(rows) > c.MaxRows {
		return &CapacityError{
			Reason: fmt.Sprintf("upload has %d rows, exceeds safe processing limit of %d", len(rows), c.MaxRows),
		}
	}
	if c.MaxBytes > 0 {
		if size := estimateSize(rows); size > c.MaxBytes {
			return &CapacityError{
				Reason: fmt.Sprintf("upload payload is ~%dMB, exceeds safe processing limit of %dMB", size/(1024*1024), c.MaxBytes/(1024*1024)),
			}
		}
	}
	return nil
}

// ProcessInChunks invokes handler once per fixed-size batch, strictly
// sequentially: batch N+1 does not start until batch N's handler returns.
// Memory is reclaimed after each batch. The first handler error aborts the
// remaining batches and is returned unchanged.
func (c *Chunker) ProcessInChunks(ctx context.Context, rows []Row, handler ChunkHandler) error {
	size := c.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}
	reclaimer := c.Reclaimer
	if reclaimer == nil {
		reclaimer = NoopReclaimer{}
	}

	for offset := 0; offset < len(rows); offset += size {
		end := offset + size
		if end > len(rows) {
			end = len(rows)
		}
		if err := handler(ctx, rows[offset:end], offset); err != nil {
			return err
		}
		reclaimer.Reclaim()
	}
	return nil
}

// estimateSize approximates the in-memory payload size of a row set from
// key and cell text lengths.
func estimateSize(rows []Row) int64 {
	var total int64
	for _, row := range rows {
		for key, cell := range row {
			total += int64(len(key))
			switch cell.Kind {
			case CellText:
				total += int64(len(cell.Text))
			case CellNumber:
				total += 8
			}
		}
	}
	return total
}
