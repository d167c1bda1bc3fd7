package imghost

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvelkov/inkpost/internal/telemetry/metrics"
)

type uploaderMock struct {
	uploaded  [][]byte
	returnErr error
}

func (u *uploaderMock) Upload(_ context.Context, image []byte) (*UploadedImage, error) {
	if u.returnErr != nil {
		return nil, u.returnErr
	}
	u.uploaded = append(u.uploaded, image)
	return &UploadedImage{
		URL:       "https://i.ibb.co/test/image.png",
		DeleteURL: "https://ibb.co/test/del",
	}, nil
}

type rateLimiterMock struct {
	limited bool
}

func (l *rateLimiterMock) Allow(_ context.Context, _ string, limit redis_rate.Limit) (*redis_rate.Result, error) {
	if l.limited {
		return &redis_rate.Result{Limit: limit, Allowed: 0, RetryAfter: time.Minute}, nil
	}
	return &redis_rate.Result{Limit: limit, Allowed: 1}, nil
}

func uploadTestSetup(t *testing.T, client uploader) (*mux.Router, *metrics.Manager) {
	t.Helper()
	return uploadTestSetupWithLimiter(t, client, &rateLimiterMock{})
}

func uploadTestSetupWithLimiter(t *testing.T, client uploader, limiter *rateLimiterMock) (*mux.Router, *metrics.Manager) {
	t.Helper()
	metricsManager := metrics.NewTestManager()
	handler := NewHandler(client, metricsManager)
	router := mux.NewRouter()
	handler.SetupRoutes(router, limiter, 10)
	return router, metricsManager
}

func multipartImageRequest(t *testing.T, fieldName string, image []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(fieldName, "image.png")
	require.NoError(t, err)
	_, err = part.Write(image)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/upload-image", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestHandler_UploadImage(t *testing.T) {
	client := &uploaderMock{}
	router, metricsManager := uploadTestSetup(t, client)

	image := []byte{0x89, 'P', 'N', 'G', 1, 2, 3}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, multipartImageRequest(t, "image", image))

	require.Equal(t, http.StatusOK, rr.Code)
	var resp uploadImageResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "https://i.ibb.co/test/image.png", resp.URL)
	assert.Equal(t, "https://ibb.co/test/del", resp.DeleteURL)

	require.Len(t, client.uploaded, 1)
	assert.Equal(t, image, client.uploaded[0])
	assert.Equal(t, float64(1), testutil.ToFloat64(metricsManager.CounterImageUploads))
}

func TestHandler_UploadImage_BadRequests(t *testing.T) {
	client := &uploaderMock{}
	router, metricsManager := uploadTestSetup(t, client)

	t.Run("not multipart", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/upload-image", strings.NewReader("plain body"))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("wrong field name", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, multipartImageRequest(t, "file", []byte("img")))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("empty file", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, multipartImageRequest(t, "image", nil))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	assert.Empty(t, client.uploaded)
	assert.Equal(t, float64(0), testutil.ToFloat64(metricsManager.CounterImageUploads))
}

func TestHandler_UploadImage_UpstreamFailurePropagated(t *testing.T) {
	client := &uploaderMock{
		returnErr: &UpstreamError{StatusCode: http.StatusForbidden, Message: "invalid api key"},
	}
	router, _ := uploadTestSetup(t, client)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, multipartImageRequest(t, "image", []byte("img")))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestHandler_UploadImage_RateLimited(t *testing.T) {
	client := &uploaderMock{}
	router, _ := uploadTestSetupWithLimiter(t, client, &rateLimiterMock{limited: true})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, multipartImageRequest(t, "image", []byte("img")))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Empty(t, client.uploaded)

	// preflight still goes through while uploads are throttled
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("OPTIONS", "/upload-image", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "POST, OPTIONS", rr.Header().Get("Allow"))
}

func TestHandler_UploadImage_TransportFailure(t *testing.T) {
	client := &uploaderMock{
		returnErr: context.DeadlineExceeded,
	}
	router, _ := uploadTestSetup(t, client)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, multipartImageRequest(t, "image", []byte("img")))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
