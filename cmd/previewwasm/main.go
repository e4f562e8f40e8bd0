//go:build js && wasm

// Command previewwasm exposes previewImage(input) to the index page.
//
//	GOOS=js GOARCH=wasm go build -o web/static/preview.wasm ./cmd/previewwasm
package main

import (
	"context"
	"log/slog"
	"syscall/js"

	"github.com/soochol/platescan/internal/preview"
	"github.com/soochol/platescan/internal/preview/jsdom"
)

func main() {
	loop := preview.NewLoop()
	ctx := context.Background()
	go loop.Run(ctx)

	var opts []preview.Option
	if js.Global().Get("previewDiscardStale").Truthy() {
		opts = append(opts, preview.WithDiscardStale())
	}

	// Only touched on the loop goroutine.
	var h *preview.Handler

	fn := js.FuncOf(func(this js.Value, args []js.Value) any {
		if len(args) == 0 {
			return nil
		}
		input := jsdom.NewInput(args[0])
		loop.Dispatch(func() {
			if h == nil {
				var err error
				h, err = preview.Bind(jsdom.NewDocument(), jsdom.FileReader{}, loop, opts...)
				if err != nil {
					slog.Error("preview: bind failed", "err", err)
					return
				}
			}
			h.Preview(input)
		})
		return nil
	})
	js.Global().Set("previewImage", fn)

	select {}
}
