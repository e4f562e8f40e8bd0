package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/soochol/platescan/internal/metrics"
	"github.com/soochol/platescan/internal/platescan"
	"github.com/soochol/platescan/internal/repository"
	"github.com/soochol/platescan/internal/storage"
)

// Processing stages, in order.
const (
	StageSave   = "save"
	StageQueue  = "queue" // waiting for a detection slot
	StageDetect = "detect"
	StageEncode = "encode"
)

// ErrUnsupportedFormat is returned for uploads whose extension is not allowed.
var ErrUnsupportedFormat = errors.New("file format not supported")

// StageError wraps the failure of one processing stage.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }

// Detector finds plates in a stored video and returns the annotated copy.
type Detector interface {
	Run(ctx context.Context, source string) (string, error)
}

// Encoder re-encodes a video file.
type Encoder interface {
	Encode(ctx context.Context, in, out string) error
}

// Upload is one file received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// ProcessService runs uploads through save, detect and encode.
type ProcessService struct {
	uploads  storage.Storage
	results  storage.Storage
	detector Detector
	encoder  Encoder
	jobs     repository.JobRepository
	limiter  *ConcurrencyLimiter
	metrics  *metrics.Metrics
	allowed  map[string]bool
}

func NewProcessService(uploads, results storage.Storage, detector Detector, encoder Encoder, jobs repository.JobRepository) *ProcessService {
	s := &ProcessService{
		uploads:  uploads,
		results:  results,
		detector: detector,
		encoder:  encoder,
		jobs:     jobs,
		limiter:  NewConcurrencyLimiter(1),
	}
	s.SetAllowedExtensions([]string{".mp4", ".avi", ".mov", ".mkv"})
	return s
}

// SetAllowedExtensions replaces the accepted upload extensions.
func (s *ProcessService) SetAllowedExtensions(exts []string) {
	s.allowed = make(map[string]bool, len(exts))
	for _, ext := range exts {
		s.allowed[strings.ToLower(ext)] = true
	}
}

// SetLimiter configures the detection concurrency limiter.
func (s *ProcessService) SetLimiter(l *ConcurrencyLimiter) {
	s.limiter = l
}

// SetMetrics configures Prometheus instrumentation.
func (s *ProcessService) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// Limiter returns the detection concurrency limiter.
func (s *ProcessService) Limiter() *ConcurrencyLimiter { return s.limiter }

// Allowed reports whether filename has an accepted extension.
func (s *ProcessService) Allowed(filename string) bool {
	return s.allowed[strings.ToLower(filepath.Ext(filename))]
}

// Process stores the upload, detects plates and encodes the result. The
// returned job is complete on success. On failure the job (when one was
// created) is returned alongside a *StageError.
func (s *ProcessService) Process(ctx context.Context, up Upload) (*platescan.Job, error) {
	start := time.Now()
	if !s.Allowed(up.Filename) {
		return nil, ErrUnsupportedFormat
	}

	info, err := s.uploads.Save(ctx, up.Filename, up.ContentType, up.Body)
	if err != nil {
		s.metrics.JobFinished(string(platescan.JobStatusFailed), StageSave)
		return nil, &StageError{Stage: StageSave, Err: err}
	}
	s.metrics.ObserveStage(StageSave, time.Since(start))

	job := &platescan.Job{
		ID:         platescan.GenerateID("job"),
		Filename:   info.Name,
		SourceName: up.Filename,
		Status:     platescan.JobStatusPending,
		Stage:      StageSave,
		CreatedAt:  start,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		slog.Warn("process: record job failed", "id", job.ID, "err", err)
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return job, s.fail(ctx, job, StageQueue, err)
	}
	defer s.limiter.Release()
	s.metrics.JobStarted()
	defer s.metrics.JobDone()

	job.Status = platescan.JobStatusRunning
	job.Stage = StageDetect
	s.update(ctx, job)

	stageStart := time.Now()
	detected, err := s.detector.Run(ctx, filepath.Join(s.uploads.Dir(), info.Name))
	s.metrics.ObserveStage(StageDetect, time.Since(stageStart))
	if err != nil {
		return job, s.fail(ctx, job, StageDetect, err)
	}

	job.Stage = StageEncode
	s.update(ctx, job)

	base := strings.TrimSuffix(info.Name, filepath.Ext(info.Name))
	out, err := s.results.Reserve(ctx, base+"_final.mp4")
	if err != nil {
		return job, s.fail(ctx, job, StageEncode, err)
	}
	stageStart = time.Now()
	err = s.encoder.Encode(ctx, detected, out.Path)
	s.metrics.ObserveStage(StageEncode, time.Since(stageStart))
	if err != nil {
		if delErr := s.results.Delete(ctx, out.Name); delErr != nil {
			slog.Warn("process: remove partial result failed", "name", out.Name, "err", delErr)
		}
		return job, s.fail(ctx, job, StageEncode, err)
	}

	now := time.Now()
	job.ResultName = out.Name
	job.Status = platescan.JobStatusSuccess
	job.ProcessingTime = roundSeconds(now.Sub(start))
	job.CompletedAt = &now
	s.update(ctx, job)
	s.metrics.JobFinished(string(job.Status), "")

	slog.Info("process: job finished", "id", job.ID, "file", job.Filename, "result", job.ResultName, "seconds", job.ProcessingTime)
	return job, nil
}

func (s *ProcessService) fail(ctx context.Context, job *platescan.Job, stage string, err error) error {
	job.Fail(stage, err)
	job.ProcessingTime = roundSeconds(job.CompletedAt.Sub(job.CreatedAt))
	s.update(ctx, job)
	s.metrics.JobFinished(string(platescan.JobStatusFailed), stage)
	slog.Error(fmt.Sprintf("process: %s failed", stage), "id", job.ID, "file", job.Filename, "err", err)
	return &StageError{Stage: stage, Err: err}
}

func (s *ProcessService) update(ctx context.Context, job *platescan.Job) {
	// The request context may already be cancelled when recording failure.
	if err := s.jobs.Update(context.WithoutCancel(ctx), job); err != nil {
		slog.Warn("process: update job failed", "id", job.ID, "err", err)
	}
}

// roundSeconds rounds d to two decimal places of seconds.
func roundSeconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*100) / 100
}
