package imghost

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"

	"github.com/mvelkov/inkpost/internal/telemetry/tracing"
)

// example API call
// https://api.imgbb.com/1/upload?key=<api-key>, image sent base64 encoded

const (
	uploadAttemptTimeout = 15 * time.Second
	maxUploadAttempts    = 2
)

// UpstreamError is returned when the image host responds with a non-2xx
// status. The status code is propagated to our own API callers.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("image host error [%d]: %s", e.StatusCode, e.Message)
}

type UploadedImage struct {
	URL       string
	DeleteURL string
}

type Client struct {
	baseEndpoint string // https://api.imgbb.com
	apiKey       string
	httpClient   *http.Client
}

func NewClient(baseEndpoint, apiKey string, httpClient *http.Client) *Client {
	return &Client{
		baseEndpoint: strings.TrimSuffix(baseEndpoint, "/"),
		apiKey:       apiKey,
		httpClient:   httpClient,
	}
}

type uploadResponse struct {
	Data struct {
		URL       string `json:"url"`
		DeleteURL string `json:"delete_url"`
	} `json:"data"`
	Success bool `json:"success"`
	Status  int  `json:"status"`
	Error   struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Upload sends the image to the host and returns the public and delete
// URLs. Transport failures and 5xx responses get one retry, a 4xx
// response is final.
func (c *Client) Upload(ctx context.Context, image []byte) (uploaded *UploadedImage, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "imghostClient.upload")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	form := url.Values{}
	form.Set("image", base64.StdEncoding.EncodeToString(image))
	uploadURL := fmt.Sprintf("%s/1/upload?key=%s", c.baseEndpoint, c.apiKey)

	for attempt := 1; attempt <= maxUploadAttempts; attempt++ {
		uploaded, err = c.uploadAttempt(ctx, uploadURL, form.Encode())
		if err == nil {
			return uploaded, nil
		}
		if !retryable(err) || attempt == maxUploadAttempts {
			return nil, err
		}
		log.Warnf("image upload attempt %d failed, retrying: %s", attempt, err)
	}

	return nil, err
}

func (c *Client) uploadAttempt(ctx context.Context, uploadURL, body string) (*UploadedImage, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, uploadAttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, "POST", uploadURL, strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read image host response: %w", err)
	}

	var uploadResp uploadResponse
	// the error body is not always json, ignore unmarshal failures on non-2xx
	unmarshalErr := json.Unmarshal(respBytes, &uploadResp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := uploadResp.Error.Message
		if message == "" {
			message = strings.TrimSpace(string(respBytes))
		}
		return nil, &UpstreamError{
			StatusCode: resp.StatusCode,
			Message:    message,
		}
	}

	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal image host response: %w", unmarshalErr)
	}
	if !uploadResp.Success || uploadResp.Data.URL == "" {
		return nil, fmt.Errorf("image host upload unsuccessful, status %d", uploadResp.Status)
	}

	return &UploadedImage{
		URL:       uploadResp.Data.URL,
		DeleteURL: uploadResp.Data.DeleteURL,
	}, nil
}

func retryable(err error) bool {
	var upstreamErr *UpstreamError
	if errors.As(err, &upstreamErr) {
		return upstreamErr.StatusCode >= 500
	}
	// transport level failure, worth one more try
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
