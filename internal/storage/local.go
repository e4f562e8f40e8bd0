package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// LocalStorage stores files in one directory on the local filesystem.
type LocalStorage struct {
	baseDir string
	mu      sync.Mutex // serialises name allocation
}

func NewLocalStorage(baseDir string) (*LocalStorage, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &LocalStorage{baseDir: baseDir}, nil
}

func (s *LocalStorage) Dir() string { return s.baseDir }

// UniqueName returns filename if it is free in dir, otherwise the first free
// "base(n).ext" for n = 1, 2, ...
func UniqueName(dir, filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)
	name := filename
	for n := 1; ; n++ {
		if _, err := os.Lstat(filepath.Join(dir, name)); errors.Is(err, os.ErrNotExist) {
			return name
		}
		name = fmt.Sprintf("%s(%d)%s", base, n, ext)
	}
}

func cleanName(name string) (string, error) {
	name = filepath.Base(filepath.Clean("/" + strings.ReplaceAll(name, `\`, "/")))
	if name == "" || name == "/" || name == "." || name == ".." {
		return "", ErrInvalidName
	}
	return name, nil
}

// create allocates a unique name and opens it exclusively.
func (s *LocalStorage) create(filename string) (*os.File, string, error) {
	clean, err := cleanName(filename)
	if err != nil {
		return nil, "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		name := UniqueName(s.baseDir, clean)
		f, err := os.OpenFile(filepath.Join(s.baseDir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, os.ErrExist) {
			// Another process took the name between Lstat and open.
			continue
		}
		if err != nil {
			return nil, "", fmt.Errorf("create file: %w", err)
		}
		return f, name, nil
	}
}

func (s *LocalStorage) Save(_ context.Context, filename string, contentType string, reader io.Reader) (*FileInfo, error) {
	f, name, err := s.create(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fullPath := filepath.Join(s.baseDir, name)
	n, err := io.Copy(f, reader)
	if err != nil {
		os.Remove(fullPath)
		return nil, fmt.Errorf("write file: %w", err)
	}

	if contentType == "" {
		contentType = contentTypeOf(name)
	}
	return &FileInfo{
		Name:        name,
		ContentType: contentType,
		Size:        n,
		Path:        fullPath,
		ModTime:     time.Now(),
	}, nil
}

func (s *LocalStorage) Reserve(_ context.Context, filename string) (*FileInfo, error) {
	f, name, err := s.create(filename)
	if err != nil {
		return nil, err
	}
	f.Close()
	return &FileInfo{
		Name:        name,
		ContentType: contentTypeOf(name),
		Path:        filepath.Join(s.baseDir, name),
		ModTime:     time.Now(),
	}, nil
}

func (s *LocalStorage) stat(name string) (*FileInfo, error) {
	clean, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	fullPath := filepath.Join(s.baseDir, clean)
	st, err := os.Stat(fullPath)
	if errors.Is(err, os.ErrNotExist) || (err == nil && !st.Mode().IsRegular()) {
		return nil, fmt.Errorf("file not found %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	return &FileInfo{
		Name:        clean,
		ContentType: contentTypeOf(clean),
		Size:        st.Size(),
		Path:        fullPath,
		ModTime:     st.ModTime(),
	}, nil
}

func (s *LocalStorage) Get(_ context.Context, name string) (*FileInfo, io.ReadCloser, error) {
	info, err := s.stat(name)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(info.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open file: %w", err)
	}
	return info, f, nil
}

func (s *LocalStorage) Delete(_ context.Context, name string) error {
	info, err := s.stat(name)
	if err != nil {
		return err
	}
	return os.Remove(info.Path)
}

func (s *LocalStorage) List(_ context.Context) ([]FileInfo, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("read storage dir: %w", err)
	}

	result := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		st, err := e.Info()
		if err != nil {
			continue
		}
		result = append(result, FileInfo{
			Name:        e.Name(),
			ContentType: contentTypeOf(e.Name()),
			Size:        st.Size(),
			Path:        filepath.Join(s.baseDir, e.Name()),
			ModTime:     st.ModTime(),
		})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ModTime.After(result[j].ModTime)
	})
	return result, nil
}

func (s *LocalStorage) Sweep(ctx context.Context, maxAge time.Duration) (int, error) {
	files, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if f.ModTime.After(cutoff) {
			continue
		}
		if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, fmt.Errorf("remove %s: %w", f.Name, err)
		}
		removed++
	}
	return removed, nil
}

func contentTypeOf(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
