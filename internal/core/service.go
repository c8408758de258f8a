package core

import (
	"time"
)

// Service provides the core business logic for CSV ingestion and querying.
// Each operation is request-scoped; the database handle is the only shared
// state. Service operates on DBTX so tests can substitute a fake store.
type Service struct {
	db      DBTX
	chunker *Chunker
	limiter *IngestLimiter
}

// ServiceOptions tune ingestion limits. Zero values fall back to defaults.
type ServiceOptions struct {
	ChunkSize     int
	MaxRows       int
	MaxBytes      int64
	MaxConcurrent int
	MaxWait       time.Duration
	Reclaimer     MemoryReclaimer
}

// NewService creates a Service backed by the given database handle,
// typically a *pgxpool.Pool.
func NewService(db DBTX, opts ServiceOptions) *Service {
	chunker := NewChunker()
	if opts.ChunkSize > 0 {
		chunker.ChunkSize = opts.ChunkSize
	}
	if opts.MaxRows > 0 {
		chunker.MaxRows = opts.MaxRows
	}
	if opts.MaxBytes > 0 {
		chunker.MaxBytes = opts.MaxBytes
	}
	if opts.Reclaimer != nil {
		chunker.Reclaimer = opts.Reclaimer
	}

	return &Service{
		db:      db,
		chunker: chunker,
		limiter: NewIngestLimiter(opts.MaxConcurrent, opts.MaxWait),
	}
}

// Limiter exposes the ingest limiter for callers that gate ingestion.
func (s *Service) Limiter() *IngestLimiter { return s.limiter }
