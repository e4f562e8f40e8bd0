package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/soochol/platescan/internal/platescan"
)

const maxJobRecords = 1000

// MemoryJobRepository stores job records in memory with FIFO eviction.
type MemoryJobRepository struct {
	mu      sync.RWMutex
	records map[string]*platescan.Job
	order   []string // insertion order for FIFO eviction
}

func NewMemoryJobRepository() *MemoryJobRepository {
	return &MemoryJobRepository{
		records: make(map[string]*platescan.Job),
	}
}

func (r *MemoryJobRepository) Create(_ context.Context, job *platescan.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[job.ID]; ok {
		r.records[job.ID] = copyJob(job)
		return nil
	}

	// FIFO eviction when at capacity.
	if len(r.order) >= maxJobRecords {
		oldest := r.order[0]
		r.order = r.order[1:]
		delete(r.records, oldest)
	}

	r.records[job.ID] = copyJob(job)
	r.order = append(r.order, job.ID)
	return nil
}

func (r *MemoryJobRepository) Get(_ context.Context, id string) (*platescan.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyJob(rec), nil
}

func (r *MemoryJobRepository) Update(_ context.Context, job *platescan.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[job.ID]; !ok {
		return ErrNotFound
	}
	r.records[job.ID] = copyJob(job)
	return nil
}

func (r *MemoryJobRepository) List(_ context.Context, limit, offset int) ([]*platescan.Job, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*platescan.Job, 0, len(r.records))
	for _, rec := range r.records {
		all = append(all, copyJob(rec))
	}

	// Sort by created_at descending.
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

// copyJob keeps callers from mutating stored records.
func copyJob(j *platescan.Job) *platescan.Job {
	cp := *j
	return &cp
}
