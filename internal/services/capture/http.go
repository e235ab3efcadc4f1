package capture

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Capitan-Parrot/distributed-video-system/sentry/internal/models"
)

// HTTPSource polls a camera snapshot endpoint
type HTTPSource struct {
	url  string
	http *resty.Client
}

func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		url:  url,
		http: resty.New().SetTimeout(timeout),
	}
}

// HTTPClient exposes the underlying resty client for transport mocking
func (s *HTTPSource) HTTPClient() *resty.Client {
	return s.http
}

func (s *HTTPSource) Name() string { return s.url }

func (s *HTTPSource) Capture(ctx context.Context) (models.Frame, error) {
	resp, err := s.http.R().SetContext(ctx).Get(s.url)
	if err != nil {
		return models.Frame{}, transient(s.url, fmt.Errorf("snapshot request: %w", err))
	}

	switch {
	case resp.StatusCode() == http.StatusGone:
		return models.Frame{}, &models.CaptureError{Source: s.url, Permanent: true, Err: models.ErrDeviceGone}
	case resp.IsError():
		return models.Frame{}, transient(s.url, fmt.Errorf("snapshot bad status: %s", resp.Status()))
	case len(resp.Body()) == 0:
		return models.Frame{}, transient(s.url, errors.New("empty snapshot"))
	}

	return models.Frame{
		Data:       resp.Body(),
		CapturedAt: time.Now(),
		Source:     s.url,
	}, nil
}
