package preview

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

const defaultMIME = "application/octet-stream"

var (
	ErrUnreadable = errors.New("preview: blob cannot be opened")
	ErrTooLarge   = errors.New("preview: blob too large")
)

// EncodeDataURL reads r and returns it as a base64 data URL.
func EncodeDataURL(mimeType string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read blob: %w", err)
	}
	mimeType = strings.TrimSpace(mimeType)
	if mimeType == "" {
		mimeType = defaultMIME
	}
	encoded := base64.StdEncoding.EncodeToString(data)
	return fmt.Sprintf("data:%s;base64,%s", mimeType, encoded), nil
}

// DataURLReader reads Opener blobs on a separate goroutine.
type DataURLReader struct {
	// MaxSize caps the blob size in bytes. Zero means no limit.
	MaxSize int64
}

func (r DataURLReader) ReadAsDataURL(b Blob) *Future {
	f := NewFuture()
	go func() {
		dataURL, err := r.read(b)
		if err != nil {
			slog.Debug("preview: read failed", "type", b.Type(), "err", err)
			f.Reject(err)
			return
		}
		f.Resolve(dataURL)
	}()
	return f
}

func (r DataURLReader) read(b Blob) (string, error) {
	op, ok := b.(Opener)
	if !ok {
		return "", fmt.Errorf("%w: %T", ErrUnreadable, b)
	}
	rc, err := op.Open()
	if err != nil {
		return "", fmt.Errorf("open blob: %w", err)
	}
	defer rc.Close()

	var src io.Reader = rc
	if r.MaxSize > 0 {
		src = io.LimitReader(rc, r.MaxSize+1)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return "", fmt.Errorf("read blob: %w", err)
	}
	if r.MaxSize > 0 && int64(len(data)) > r.MaxSize {
		return "", ErrTooLarge
	}
	return EncodeDataURL(b.Type(), bytes.NewReader(data))
}

// BytesBlob is an in-memory Opener.
type BytesBlob struct {
	MIME string
	Data []byte
}

func (b BytesBlob) Type() string { return b.MIME }

func (b BytesBlob) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b.Data)), nil
}
