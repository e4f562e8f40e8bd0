package repository

import (
	"context"
	"log/slog"

	"github.com/soochol/platescan/internal/db"
	"github.com/soochol/platescan/internal/platescan"
)

var _ JobDB = (*db.DB)(nil)

// JobDB is the subset of *db.DB the persistent repository needs.
type JobDB interface {
	CreateJob(ctx context.Context, job *platescan.Job) error
	GetJob(ctx context.Context, id string) (*platescan.Job, error)
	UpdateJob(ctx context.Context, job *platescan.Job) error
	ListJobs(ctx context.Context, limit, offset int) ([]*platescan.Job, int, error)
}

// PersistentJobRepository wraps a MemoryJobRepository with a PostgreSQL backend.
// Writes go to both stores (DB failure is logged but non-fatal).
// Reads try memory first, falling back to the database.
type PersistentJobRepository struct {
	mem *MemoryJobRepository
	db  JobDB
}

func NewPersistentJobRepository(mem *MemoryJobRepository, database JobDB) *PersistentJobRepository {
	return &PersistentJobRepository{mem: mem, db: database}
}

func (r *PersistentJobRepository) Create(ctx context.Context, job *platescan.Job) error {
	_ = r.mem.Create(ctx, job)
	if err := r.db.CreateJob(ctx, job); err != nil {
		slog.Warn("db create job failed, in-memory only", "err", err)
	}
	return nil
}

func (r *PersistentJobRepository) Get(ctx context.Context, id string) (*platescan.Job, error) {
	rec, err := r.mem.Get(ctx, id)
	if err == nil {
		return rec, nil
	}

	dbRec, dbErr := r.db.GetJob(ctx, id)
	if dbErr != nil {
		return nil, err // return original ErrNotFound
	}

	_ = r.mem.Create(ctx, dbRec)
	return dbRec, nil
}

func (r *PersistentJobRepository) Update(ctx context.Context, job *platescan.Job) error {
	_ = r.mem.Update(ctx, job)
	if err := r.db.UpdateJob(ctx, job); err != nil {
		slog.Warn("db update job failed, in-memory only", "err", err)
	}
	return nil
}

func (r *PersistentJobRepository) List(ctx context.Context, limit, offset int) ([]*platescan.Job, int, error) {
	jobs, total, err := r.db.ListJobs(ctx, limit, offset)
	if err == nil {
		return jobs, total, nil
	}
	slog.Warn("db list jobs failed, falling back to in-memory", "err", err)
	return r.mem.List(ctx, limit, offset)
}
