package preview

import (
	"errors"
	"fmt"
)

// Default element identifiers used by the index page.
const (
	DefaultImageID     = "previewImg"
	DefaultContainerID = "preview"
)

var (
	ErrElementNotFound = errors.New("preview: element not found")
	ErrElementType     = errors.New("preview: element has wrong type")
)

// Document looks up page elements by identifier.
type Document interface {
	ElementByID(id string) (any, bool)
}

// Option configures a Handler.
type Option func(*options)

type options struct {
	imageID      string
	containerID  string
	discardStale bool
}

func applyOptions(opts []Option) options {
	o := options{imageID: DefaultImageID, containerID: DefaultContainerID}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithIDs overrides the identifiers Bind looks up.
func WithIDs(imageID, containerID string) Option {
	return func(o *options) {
		o.imageID = imageID
		o.containerID = containerID
	}
}

// WithDiscardStale drops read completions that were overtaken by a later
// Preview call on the same Handler.
func WithDiscardStale() Option {
	return func(o *options) { o.discardStale = true }
}

// Bind resolves the image and container elements from doc and returns a
// Handler for them.
func Bind(doc Document, reader Reader, dispatcher Dispatcher, opts ...Option) (*Handler, error) {
	o := applyOptions(opts)

	image, err := lookup[Image](doc, o.imageID)
	if err != nil {
		return nil, err
	}
	container, err := lookup[Container](doc, o.containerID)
	if err != nil {
		return nil, err
	}
	return New(image, container, reader, dispatcher, opts...), nil
}

func lookup[T any](doc Document, id string) (T, error) {
	var zero T
	el, ok := doc.ElementByID(id)
	if !ok || el == nil {
		return zero, fmt.Errorf("%w: #%s", ErrElementNotFound, id)
	}
	v, ok := el.(T)
	if !ok {
		return zero, fmt.Errorf("%w: #%s is %T", ErrElementType, id, el)
	}
	return v, nil
}
