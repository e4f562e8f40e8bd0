package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/soochol/platescan/internal/detect"
	"github.com/soochol/platescan/internal/preview"
	"github.com/soochol/platescan/internal/services"
)

// indexPage is the data rendered into index.html.
type indexPage struct {
	Original       string
	Result         string
	ProcessingTime float64
	DiscardStale   bool
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	s.renderIndex(w, indexPage{})
}

func (s *Server) renderIndex(w http.ResponseWriter, page indexPage) {
	page.DiscardStale = s.discardStale
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.pages.ExecuteTemplate(w, "index.html", page); err != nil {
		slog.Error("render index failed", "err", err)
	}
}

// uploadVideo runs an uploaded video through detection and renders the
// index page with both videos.
// POST /upload
func (s *Server) uploadVideo(w http.ResponseWriter, r *http.Request) {
	if s.processSvc == nil {
		http.Error(w, "processing not configured", http.StatusServiceUnavailable)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		if bodyTooLarge(r, err, s.maxUploadSize) {
			http.Error(w, "File too large.", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	job, err := s.processSvc.Process(r.Context(), services.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
	})
	if err != nil {
		status, msg := uploadError(err)
		http.Error(w, msg, status)
		return
	}

	s.renderIndex(w, indexPage{
		Original:       job.OriginalURL(),
		Result:         job.ResultURL(),
		ProcessingTime: job.ProcessingTime,
	})
}

// bodyTooLarge reports whether reading the multipart form failed because the
// body exceeded limit.
func bodyTooLarge(r *http.Request, err error, limit int64) bool {
	var tooLarge *http.MaxBytesError
	return errors.As(err, &tooLarge) || r.ContentLength > limit
}

// uploadError maps a processing failure to the status and text shown to the
// uploader.
func uploadError(err error) (int, string) {
	if errors.Is(err, services.ErrUnsupportedFormat) {
		return http.StatusBadRequest, "File format not supported."
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge, "File too large."
	}

	var stageErr *services.StageError
	if !errors.As(err, &stageErr) {
		return http.StatusInternalServerError, err.Error()
	}
	switch stageErr.Stage {
	case services.StageDetect:
		var missing *detect.OutputMissingError
		switch {
		case errors.Is(stageErr.Err, detect.ErrNoOutputDir):
			return http.StatusInternalServerError, "Could not find YOLO output folder."
		case errors.As(stageErr.Err, &missing):
			return http.StatusInternalServerError, "YOLO output file not found: " + missing.Path
		}
		return http.StatusInternalServerError, "YOLOv9 error: " + stageErr.Err.Error()
	case services.StageQueue:
		return http.StatusServiceUnavailable, "Upload cancelled while waiting for a detection slot."
	case services.StageEncode:
		return http.StatusInternalServerError, "FFmpeg error: " + stageErr.Err.Error()
	}
	return http.StatusInternalServerError, "Could not save upload: " + stageErr.Err.Error()
}

// previewImage encodes an uploaded image as a data URL.
// POST /api/preview
func (s *Server) previewImage(w http.ResponseWriter, r *http.Request) {
	limit := s.maxPreviewSize + (1 << 20)
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	file, header, err := r.FormFile("file")
	if err != nil {
		s.metrics.Preview(false)
		if bodyTooLarge(r, err, limit) {
			http.Error(w, "image too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.metrics.Preview(false)
		http.Error(w, "read file", http.StatusBadRequest)
		return
	}
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}

	reader := preview.DataURLReader{MaxSize: s.maxPreviewSize}
	dataURL, err := reader.ReadAsDataURL(preview.BytesBlob{MIME: mimeType, Data: data}).Await(r.Context())
	if err != nil {
		s.metrics.Preview(false)
		if errors.Is(err, preview.ErrTooLarge) {
			http.Error(w, "image too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.metrics.Preview(true)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"data_url": dataURL})
}
