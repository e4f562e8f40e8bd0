//go:build js && wasm

// Package jsdom adapts browser DOM values to the preview interfaces.
package jsdom

import (
	"syscall/js"

	"github.com/soochol/platescan/internal/preview"
)

// Element wraps a DOM element. It satisfies both preview.Image and
// preview.Container; Bind decides which role it plays.
type Element struct {
	v js.Value
}

func (e Element) SetSrc(src string) { e.v.Set("src", src) }

func (e Element) SetDisplay(display string) { e.v.Get("style").Set("display", display) }

// Document wraps window.document.
type Document struct {
	v js.Value
}

func NewDocument() Document {
	return Document{v: js.Global().Get("document")}
}

func (d Document) ElementByID(id string) (any, bool) {
	el := d.v.Call("getElementById", id)
	if el.IsNull() || el.IsUndefined() {
		return nil, false
	}
	return Element{v: el}, true
}

// File wraps a DOM File or Blob.
type File struct {
	v js.Value
}

func (f File) Type() string { return f.v.Get("type").String() }

// Input wraps an <input type="file"> element.
type Input struct {
	v js.Value
}

func NewInput(v js.Value) Input { return Input{v: v} }

func (in Input) Files() []preview.Blob {
	files := in.v.Get("files")
	if !files.Truthy() {
		return nil
	}
	n := files.Length()
	out := make([]preview.Blob, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, File{v: files.Index(i)})
	}
	return out
}

// FileReader reads blobs with the browser FileReader. Only onload is
// observed; a failed read leaves the future unsettled.
type FileReader struct{}

func (FileReader) ReadAsDataURL(b preview.Blob) *preview.Future {
	f := preview.NewFuture()
	file, ok := b.(File)
	if !ok {
		f.Reject(preview.ErrUnreadable)
		return f
	}

	reader := js.Global().Get("FileReader").New()
	var onload js.Func
	onload = js.FuncOf(func(this js.Value, args []js.Value) any {
		defer onload.Release()
		f.Resolve(args[0].Get("target").Get("result").String())
		return nil
	})
	reader.Set("onload", onload)
	reader.Call("readAsDataURL", file.v)
	return f
}
