package imghost

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/mvelkov/inkpost/internal/middleware"
	"github.com/mvelkov/inkpost/internal/telemetry/metrics"
	"github.com/mvelkov/inkpost/pkg"
)

// 32 MB, same as the default multipart memory limit
const maxUploadBytes = 32 << 20

type uploader interface {
	Upload(ctx context.Context, image []byte) (*UploadedImage, error)
}

type Handler struct {
	client  uploader
	metrics *metrics.Manager
}

func NewHandler(client uploader, metricsManager *metrics.Manager) *Handler {
	return &Handler{
		client:  client,
		metrics: metricsManager,
	}
}

func (handler *Handler) SetupRoutes(
	router *mux.Router,
	rateLimiter middleware.RequestRateLimiter,
	uploadAllowedPerMin int,
) {
	rateLimit := middleware.RateLimit(rateLimiter, "upload-image", uploadAllowedPerMin, handler.metrics)
	router.Handle(
		"/upload-image",
		rateLimit(http.HandlerFunc(handler.handleUploadImage)),
	).Methods("POST").Name("upload-image")
	// preflight requests skip the limiter, only actual uploads count
	router.HandleFunc("/upload-image", handler.handleUploadImage).
		Methods("OPTIONS").Name("upload-image-preflight")
}

type uploadImageResponse struct {
	URL       string `json:"url"`
	DeleteURL string `json:"deleteUrl"`
}

func (handler *Handler) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "error, invalid multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		http.Error(w, "error, image file missing", http.StatusBadRequest)
		return
	}
	defer file.Close()

	image, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		log.Errorf("upload image, read file: %s", err)
		http.Error(w, "error, failed to read image", http.StatusInternalServerError)
		return
	}
	if len(image) == 0 {
		http.Error(w, "error, image file empty", http.StatusBadRequest)
		return
	}

	log.Debugf("uploading image %q, %d bytes", header.Filename, len(image))

	uploaded, err := handler.client.Upload(r.Context(), image)
	if err != nil {
		var upstreamErr *UpstreamError
		if errors.As(err, &upstreamErr) {
			log.Errorf("upload image, host rejected: %s", upstreamErr)
			http.Error(w, "error, image host upload failed", upstreamErr.StatusCode)
			return
		}
		log.Errorf("upload image: %s", err)
		http.Error(w, "error, image upload failed", http.StatusInternalServerError)
		return
	}

	handler.metrics.CounterImageUploads.Inc()

	respJson, err := json.Marshal(uploadImageResponse{
		URL:       uploaded.URL,
		DeleteURL: uploaded.DeleteURL,
	})
	if err != nil {
		log.Errorf("marshal upload image response: %s", err)
		http.Error(w, "marshal response error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, respJson)
}
