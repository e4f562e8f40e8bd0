package preview

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pngURL = "data:image/png;base64,AAAA"

type fakeImage struct {
	src  string
	sets int
}

func (i *fakeImage) SetSrc(src string) {
	i.src = src
	i.sets++
}

// fakeContainer records the image source seen at the moment it is shown.
type fakeContainer struct {
	display   string
	img       *fakeImage
	srcAtShow []string
}

func (c *fakeContainer) SetDisplay(d string) {
	if d == DisplayBlock && c.img != nil {
		c.srcAtShow = append(c.srcAtShow, c.img.src)
	}
	c.display = d
}

type fakeInput []Blob

func (in fakeInput) Files() []Blob { return in }

// stubReader resolves every read immediately with url.
type stubReader struct {
	url   string
	calls int
}

func (r *stubReader) ReadAsDataURL(Blob) *Future {
	r.calls++
	f := NewFuture()
	f.Resolve(r.url)
	return f
}

// pendingReader hands out futures the test settles by hand.
type pendingReader struct {
	futures []*Future
}

func (r *pendingReader) ReadAsDataURL(Blob) *Future {
	f := NewFuture()
	r.futures = append(r.futures, f)
	return f
}

func startLoop(t *testing.T) *Loop {
	t.Helper()
	l := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return l
}

func onLoop(t *testing.T, l *Loop, fn func()) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, l.Do(ctx, fn))
}

func newFixture(t *testing.T, r Reader, opts ...Option) (*Loop, *Handler, *fakeImage, *fakeContainer) {
	l := startLoop(t)
	img := &fakeImage{}
	box := &fakeContainer{img: img}
	return l, New(img, box, r, l, opts...), img, box
}

func TestPreview_NoFileHidesSynchronously(t *testing.T) {
	for name, in := range map[string]Input{
		"empty list": fakeInput(nil),
		"nil input":  nil,
		"nil first":  fakeInput{nil},
	} {
		t.Run(name, func(t *testing.T) {
			r := &stubReader{url: pngURL}
			img := &fakeImage{src: "old"}
			box := &fakeContainer{display: DisplayBlock}
			h := New(img, box, r, DispatcherFunc(func(fn func()) {
				t.Fatal("nothing should be dispatched")
			}))

			h.Preview(in)

			assert.Equal(t, DisplayNone, box.display)
			assert.Equal(t, "old", img.src)
			assert.Zero(t, img.sets)
			assert.Zero(t, r.calls)
		})
	}
}

func TestPreview_FileShowsDataURL(t *testing.T) {
	r := &stubReader{url: pngURL}
	l, h, img, box := newFixture(t, r)

	onLoop(t, l, func() { h.Preview(fakeInput{BytesBlob{MIME: "image/png"}}) })
	onLoop(t, l, func() {})

	onLoop(t, l, func() {
		assert.Equal(t, pngURL, img.src)
		assert.Equal(t, DisplayBlock, box.display)
	})
	assert.Equal(t, 1, r.calls)
}

func TestPreview_ShowIsNotSynchronous(t *testing.T) {
	r := &stubReader{url: pngURL}
	l, h, img, box := newFixture(t, r)

	onLoop(t, l, func() {
		h.Preview(fakeInput{BytesBlob{}})
		// The continuation is queued behind the current task.
		assert.Empty(t, img.src)
		assert.Empty(t, box.display)
	})
}

func TestPreview_Idempotent(t *testing.T) {
	in := fakeInput{BytesBlob{MIME: "image/png"}}

	l1, once, img1, box1 := newFixture(t, &stubReader{url: pngURL})
	onLoop(t, l1, func() { once.Preview(in) })

	l2, twice, img2, box2 := newFixture(t, &stubReader{url: pngURL})
	onLoop(t, l2, func() {
		twice.Preview(in)
		twice.Preview(in)
	})

	onLoop(t, l1, func() {})
	onLoop(t, l2, func() {})
	onLoop(t, l1, func() {
		assert.Equal(t, img1.src, img2.src)
		assert.Equal(t, box1.display, box2.display)
	})
}

func TestPreview_BranchExclusive(t *testing.T) {
	tests := []struct {
		name      string
		in        Input
		wantReads int
		wantShown string
	}{
		{"no file", fakeInput{}, 0, DisplayNone},
		{"one file", fakeInput{BytesBlob{}}, 1, DisplayBlock},
		{"two files", fakeInput{BytesBlob{}, BytesBlob{}}, 1, DisplayBlock},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &stubReader{url: pngURL}
			l, h, _, box := newFixture(t, r)

			var syncDisplay string
			onLoop(t, l, func() {
				h.Preview(tt.in)
				syncDisplay = box.display
			})
			onLoop(t, l, func() {})

			assert.Equal(t, tt.wantReads, r.calls)
			if tt.wantReads == 0 {
				assert.Equal(t, DisplayNone, syncDisplay)
			} else {
				assert.Empty(t, syncDisplay, "read branch must not touch the container synchronously")
			}
			onLoop(t, l, func() { assert.Equal(t, tt.wantShown, box.display) })
		})
	}
}

func TestPreview_SourceSetBeforeShow(t *testing.T) {
	l, h, img, box := newFixture(t, &stubReader{url: pngURL})
	onLoop(t, l, func() { img.src = "stale" })

	onLoop(t, l, func() { h.Preview(fakeInput{BytesBlob{}}) })
	onLoop(t, l, func() {})

	onLoop(t, l, func() {
		assert.Equal(t, []string{pngURL}, box.srcAtShow)
	})
}

func TestPreview_ReadFailureLeavesStateUntouched(t *testing.T) {
	t.Run("never completes", func(t *testing.T) {
		r := &pendingReader{}
		l, h, img, box := newFixture(t, r)
		onLoop(t, l, func() {
			img.src = "before"
			box.display = DisplayNone
			h.Preview(fakeInput{BytesBlob{}})
		})

		time.Sleep(50 * time.Millisecond)
		onLoop(t, l, func() {
			assert.Equal(t, "before", img.src)
			assert.Equal(t, DisplayNone, box.display)
		})
	})

	t.Run("rejected", func(t *testing.T) {
		r := &pendingReader{}
		l, h, img, box := newFixture(t, r)
		onLoop(t, l, func() {
			img.src = "before"
			box.display = DisplayBlock
			h.Preview(fakeInput{BytesBlob{}})
		})
		r.futures[0].Reject(errors.New("unreadable"))
		onLoop(t, l, func() {})

		onLoop(t, l, func() {
			assert.Equal(t, "before", img.src)
			assert.Equal(t, DisplayBlock, box.display)
			assert.Zero(t, img.sets)
		})
	})
}

func TestPreview_OutOfOrderCompletion(t *testing.T) {
	run := func(t *testing.T, opts ...Option) (*fakeImage, *fakeContainer) {
		r := &pendingReader{}
		l, h, img, box := newFixture(t, r, opts...)
		onLoop(t, l, func() {
			h.Preview(fakeInput{BytesBlob{}})
			h.Preview(fakeInput{BytesBlob{}})
		})
		require.Len(t, r.futures, 2)
		r.futures[1].Resolve("data:,second")
		r.futures[0].Resolve("data:,first")
		onLoop(t, l, func() {})
		return img, box
	}

	t.Run("default keeps last completion", func(t *testing.T) {
		img, box := run(t)
		assert.Equal(t, "data:,first", img.src)
		assert.Equal(t, DisplayBlock, box.display)
	})

	t.Run("discard stale keeps last invocation", func(t *testing.T) {
		img, box := run(t, WithDiscardStale())
		assert.Equal(t, "data:,second", img.src)
		assert.Equal(t, DisplayBlock, box.display)
	})
}

func TestPreview_DiscardStaleAfterHide(t *testing.T) {
	r := &pendingReader{}
	l, h, img, box := newFixture(t, r, WithDiscardStale())
	require.True(t, h.DiscardsStale())

	onLoop(t, l, func() {
		h.Preview(fakeInput{BytesBlob{}})
		h.Preview(fakeInput{})
	})
	r.futures[0].Resolve(pngURL)
	onLoop(t, l, func() {})

	onLoop(t, l, func() {
		assert.Empty(t, img.src)
		assert.Equal(t, DisplayNone, box.display)
	})
}
