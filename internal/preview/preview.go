// Package preview shows a selected file in an image element before it is
// uploaded.
//
// A Handler owns no page state. The image element, the container whose
// visibility it toggles, the file reading capability and the dispatcher that
// confines element mutation to one goroutine are all injected.
package preview

import (
	"io"
	"sync/atomic"
)

// Container display values.
const (
	DisplayBlock = "block"
	DisplayNone  = "none"
)

// Blob is an opaque selected file.
type Blob interface {
	// Type returns the MIME type reported for the file, possibly empty.
	Type() string
}

// Opener is a Blob whose bytes can be read directly.
type Opener interface {
	Blob
	Open() (io.ReadCloser, error)
}

// Input is a file input control holding zero or more selected files.
type Input interface {
	Files() []Blob
}

// Image is the element that displays the preview.
type Image interface {
	SetSrc(src string)
}

// Container is the element whose visibility follows the selection.
type Container interface {
	SetDisplay(display string)
}

// Reader reads a Blob asynchronously and encodes it as a data URL.
type Reader interface {
	ReadAsDataURL(b Blob) *Future
}

// Handler previews the first selected file of an Input.
type Handler struct {
	image        Image
	container    Container
	reader       Reader
	dispatcher   Dispatcher
	discardStale bool

	gen atomic.Uint64
}

// New returns a Handler bound to the given elements.
func New(image Image, container Container, reader Reader, dispatcher Dispatcher, opts ...Option) *Handler {
	o := applyOptions(opts)
	return &Handler{
		image:        image,
		container:    container,
		reader:       reader,
		dispatcher:   dispatcher,
		discardStale: o.discardStale,
	}
}

// Preview schedules a read of the first selected file and, once it
// completes, sets the image source and shows the container. With no file
// selected the container is hidden immediately and nothing is scheduled.
//
// A read that fails or never completes leaves both elements untouched.
// Preview must be called from the dispatcher's goroutine.
func (h *Handler) Preview(input Input) {
	var files []Blob
	if input != nil {
		files = input.Files()
	}
	if len(files) == 0 || files[0] == nil {
		h.gen.Add(1)
		h.container.SetDisplay(DisplayNone)
		return
	}

	token := h.gen.Add(1)
	h.reader.ReadAsDataURL(files[0]).Then(h.dispatcher, func(dataURL string) {
		if h.discardStale && h.gen.Load() != token {
			return
		}
		h.image.SetSrc(dataURL)
		h.container.SetDisplay(DisplayBlock)
	})
}

// DiscardsStale reports whether out-of-order completions are dropped.
func (h *Handler) DiscardsStale() bool { return h.discardStale }
