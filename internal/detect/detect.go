// Package detect runs the plate detection script over a video and locates
// the annotated output it writes.
package detect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/soochol/platescan/internal/command"
)

var (
	// ErrNoOutputDir is returned when the runs directory holds no exp* folder.
	ErrNoOutputDir = errors.New("could not find detection output folder")
	// ErrOutputMissing is returned when no exp* folder holds the output file.
	ErrOutputMissing = errors.New("detection output file not found")
)

// OutputMissingError names the output file the script was expected to write.
type OutputMissingError struct {
	Path string
}

func (e *OutputMissingError) Error() string { return ErrOutputMissing.Error() + ": " + e.Path }

func (e *OutputMissingError) Unwrap() error { return ErrOutputMissing }

// Detector invokes the detection script. The script writes its annotated
// copy of the source to a fresh exp* directory under RunsDir.
type Detector struct {
	Python  string
	Script  string
	Weights string
	Conf    float64
	Device  string
	RunsDir string
	Timeout time.Duration
}

// Args returns the script arguments for source.
func (d *Detector) Args(source string) []string {
	return []string{
		d.Script,
		"--conf", strconv.FormatFloat(d.Conf, 'f', -1, 64),
		"--device", d.Device,
		"--weights", d.Weights,
		"--source", source,
	}
}

// Run detects plates in source and returns the path of the annotated video.
func (d *Detector) Run(ctx context.Context, source string) (string, error) {
	python := d.Python
	if python == "" {
		python = "python"
	}

	start := time.Now()
	if _, err := command.Run(ctx, d.Timeout, python, d.Args(source)...); err != nil {
		return "", err
	}
	slog.Info("detect: script finished", "source", source, "elapsed", time.Since(start))

	// Concurrent runs each create their own exp* folder, so the newest one
	// may belong to another source. Upload names are unique.
	dirs, err := expDirs(d.RunsDir)
	if err != nil {
		return "", err
	}
	name := filepath.Base(source)
	for _, dir := range dirs {
		out := filepath.Join(dir, name)
		if _, err := os.Stat(out); err == nil {
			return out, nil
		}
	}
	return "", &OutputMissingError{Path: filepath.Join(dirs[0], name)}
}

// LatestExpDir returns the most recently modified directory under base whose
// name starts with "exp".
func LatestExpDir(base string) (string, error) {
	dirs, err := expDirs(base)
	if err != nil {
		return "", err
	}
	return dirs[0], nil
}

// expDirs lists the exp* directories under base, newest first.
func expDirs(base string) ([]string, error) {
	entries, err := os.ReadDir(base)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoOutputDir
		}
		return nil, fmt.Errorf("read runs dir: %w", err)
	}

	type candidate struct {
		path string
		mod  time.Time
	}
	var dirs []candidate
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), "exp") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		dirs = append(dirs, candidate{filepath.Join(base, e.Name()), info.ModTime()})
	}
	if len(dirs) == 0 {
		return nil, ErrNoOutputDir
	}

	sort.Slice(dirs, func(i, j int) bool { return dirs[i].mod.After(dirs[j].mod) })
	paths := make([]string, len(dirs))
	for i, c := range dirs {
		paths[i] = c.path
	}
	return paths, nil
}
