package repository

import (
	"context"
	"errors"

	"github.com/soochol/platescan/internal/platescan"
)

// ErrNotFound is returned when a job does not exist.
var ErrNotFound = errors.New("job not found")

// JobRepository abstracts persistence for processing job records.
type JobRepository interface {
	Create(ctx context.Context, job *platescan.Job) error
	Get(ctx context.Context, id string) (*platescan.Job, error)
	Update(ctx context.Context, job *platescan.Job) error
	// List returns jobs newest first together with the total count.
	List(ctx context.Context, limit, offset int) ([]*platescan.Job, int, error)
}
