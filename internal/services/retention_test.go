package services

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soochol/platescan/internal/storage"
)

func agedFile(t *testing.T, s *storage.LocalStorage, name string, age time.Duration) {
	t.Helper()
	info, err := s.Save(context.Background(), name, "", strings.NewReader("x"))
	require.NoError(t, err)
	ts := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(info.Path, ts, ts))
}

func TestRetention_Sweep(t *testing.T) {
	uploads, _ := storage.NewLocalStorage(t.TempDir())
	results, _ := storage.NewLocalStorage(t.TempDir())
	agedFile(t, uploads, "old.mp4", 10*24*time.Hour)
	agedFile(t, uploads, "fresh.mp4", time.Minute)
	agedFile(t, results, "old_final.mp4", 10*24*time.Hour)

	r := NewRetentionService(7*24*time.Hour,
		NamedStore{Name: "uploads", Store: uploads},
		NamedStore{Name: "result", Store: results},
	)
	n, err := r.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	left, _ := uploads.List(context.Background())
	require.Len(t, left, 1)
	assert.Equal(t, "fresh.mp4", left[0].Name)
}

func TestRetention_Disabled(t *testing.T) {
	uploads, _ := storage.NewLocalStorage(t.TempDir())
	agedFile(t, uploads, "old.mp4", 365*24*time.Hour)

	r := NewRetentionService(0, NamedStore{Name: "uploads", Store: uploads})
	require.NoError(t, r.Start("not a cron expression"))
	defer r.Stop()

	n, err := r.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRetention_StartRejectsBadSchedule(t *testing.T) {
	r := NewRetentionService(time.Hour)
	assert.Error(t, r.Start("every tuesday"))
}

func TestParseCronExpr(t *testing.T) {
	for _, expr := range []string{"@hourly", "0 3 * * *", "*/30 * * * * *"} {
		_, err := parseCronExpr(expr)
		assert.NoError(t, err, expr)
	}
}

func TestRetention_StartAndStop(t *testing.T) {
	r := NewRetentionService(time.Hour)
	require.NoError(t, r.Start("@every 1h"))
	done := make(chan struct{})
	go func() {
		r.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}
