package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newStore(t *testing.T) *LocalStorage {
	t.Helper()
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}
	return store
}

func TestLocalStorage_SaveAndGet(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	content := "hello world"
	info, err := store.Save(ctx, "clip.mp4", "video/mp4", strings.NewReader(content))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if info.Name != "clip.mp4" {
		t.Errorf("name: got %q", info.Name)
	}
	if info.ContentType != "video/mp4" {
		t.Errorf("content_type: got %q", info.ContentType)
	}
	if info.Size != int64(len(content)) {
		t.Errorf("size: got %d, want %d", info.Size, len(content))
	}

	gotInfo, reader, err := store.Get(ctx, info.Name)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer reader.Close()

	if gotInfo.Size != int64(len(content)) {
		t.Errorf("get size: got %d", gotInfo.Size)
	}
	data, _ := io.ReadAll(reader)
	if string(data) != content {
		t.Errorf("content: got %q", string(data))
	}
}

func TestLocalStorage_SaveUniqueNames(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	want := []string{"car.mp4", "car(1).mp4", "car(2).mp4"}
	for _, w := range want {
		info, err := store.Save(ctx, "car.mp4", "video/mp4", strings.NewReader("x"))
		if err != nil {
			t.Fatalf("Save: %v", err)
		}
		if info.Name != w {
			t.Errorf("name: got %q, want %q", info.Name, w)
		}
	}
}

func TestUniqueName(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.tar.gz", "noext", "noext(1)"} {
		os.WriteFile(filepath.Join(dir, name), nil, 0644)
	}

	tests := []struct{ in, want string }{
		{"free.mp4", "free.mp4"},
		{"a.tar.gz", "a.tar(1).gz"},
		{"noext", "noext(2)"},
	}
	for _, tt := range tests {
		if got := UniqueName(dir, tt.in); got != tt.want {
			t.Errorf("UniqueName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLocalStorage_SaveStripsDirectories(t *testing.T) {
	store := newStore(t)
	info, err := store.Save(context.Background(), "../../etc/passwd", "", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if info.Name != "passwd" {
		t.Errorf("name: got %q", info.Name)
	}
	if filepath.Dir(info.Path) != store.Dir() {
		t.Errorf("path escaped store: %q", info.Path)
	}

	if _, err := store.Save(context.Background(), "..", "", strings.NewReader("x")); !errors.Is(err, ErrInvalidName) {
		t.Errorf("expected ErrInvalidName, got %v", err)
	}
}

func TestLocalStorage_Reserve(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	a, err := store.Reserve(ctx, "out_final.mp4")
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	b, err := store.Reserve(ctx, "out_final.mp4")
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if a.Name != "out_final.mp4" || b.Name != "out_final(1).mp4" {
		t.Errorf("names: got %q, %q", a.Name, b.Name)
	}
	if _, err := os.Stat(a.Path); err != nil {
		t.Errorf("reserved file should exist: %v", err)
	}
}

func TestLocalStorage_Delete(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	info, err := store.Save(ctx, "to-delete.txt", "text/plain", strings.NewReader("data"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := store.Delete(ctx, info.Name); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	_, _, err = store.Get(ctx, info.Name)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestLocalStorage_DeleteNotFound(t *testing.T) {
	store := newStore(t)
	err := store.Delete(context.Background(), "nonexistent")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLocalStorage_List(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	files, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("list empty: got %d", len(files))
	}

	store.Save(ctx, "a.mp4", "video/mp4", strings.NewReader("aaa"))
	b, _ := store.Save(ctx, "b.mp4", "video/mp4", strings.NewReader("bbb"))
	os.Mkdir(filepath.Join(store.Dir(), "subdir"), 0755)
	future := time.Now().Add(time.Hour)
	os.Chtimes(b.Path, future, future)

	files, err = store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("list: got %d, want 2", len(files))
	}
	if files[0].Name != "b.mp4" {
		t.Errorf("newest first: got %q", files[0].Name)
	}
}

func TestLocalStorage_Sweep(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	old, _ := store.Save(ctx, "old.mp4", "", strings.NewReader("o"))
	store.Save(ctx, "new.mp4", "", strings.NewReader("n"))
	past := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(old.Path, past, past); err != nil {
		t.Fatal(err)
	}

	n, err := store.Sweep(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 1 {
		t.Errorf("removed: got %d, want 1", n)
	}
	files, _ := store.List(ctx)
	if len(files) != 1 || files[0].Name != "new.mp4" {
		t.Errorf("remaining: got %+v", files)
	}
}
