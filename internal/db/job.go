package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/soochol/platescan/internal/platescan"
)

const jobColumns = `id, filename, source_name, result_name, status, stage, error, processing_time, created_at, completed_at`

// CreateJob stores a new job record.
func (d *DB) CreateJob(ctx context.Context, j *platescan.Job) error {
	_, err := d.Pool.ExecContext(ctx,
		`INSERT INTO jobs (`+jobColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		j.ID, j.Filename, j.SourceName, j.ResultName, string(j.Status), j.Stage,
		j.Error, j.ProcessingTime, j.CreatedAt, j.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetJob retrieves a job record by ID.
func (d *DB) GetJob(ctx context.Context, id string) (*platescan.Job, error) {
	row := d.Pool.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

// UpdateJob updates an existing job record.
func (d *DB) UpdateJob(ctx context.Context, j *platescan.Job) error {
	_, err := d.Pool.ExecContext(ctx,
		`UPDATE jobs SET filename = $1, result_name = $2, status = $3, stage = $4, error = $5, processing_time = $6, completed_at = $7
		 WHERE id = $8`,
		j.Filename, j.ResultName, string(j.Status), j.Stage, j.Error, j.ProcessingTime, j.CompletedAt, j.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// ListJobs returns jobs newest first with pagination.
func (d *DB) ListJobs(ctx context.Context, limit, offset int) ([]*platescan.Job, int, error) {
	var total int
	if err := d.Pool.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	rows, err := d.Pool.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*platescan.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, total, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (*platescan.Job, error) {
	j := &platescan.Job{}
	var status string
	var errMsg sql.NullString
	var completed sql.NullTime
	if err := s.Scan(&j.ID, &j.Filename, &j.SourceName, &j.ResultName, &status, &j.Stage,
		&errMsg, &j.ProcessingTime, &j.CreatedAt, &completed); err != nil {
		return nil, err
	}
	j.Status = platescan.JobStatus(status)
	if errMsg.Valid {
		j.Error = &errMsg.String
	}
	if completed.Valid {
		j.CompletedAt = &completed.Time
	}
	return j, nil
}
