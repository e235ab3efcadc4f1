package detection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/Capitan-Parrot/distributed-video-system/sentry/internal/models"
)

// prediction is one box as returned by the classifier service
type prediction struct {
	Class string    `json:"class"`
	Score float64   `json:"score"`
	Box   []float64 `json:"box"` // [x1, y1, x2, y2]
}

type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &Client{
		http:   client,
		logger: logger.Named("classifier"),
	}
}

// HTTPClient exposes the underlying resty client for transport mocking
func (c *Client) HTTPClient() *resty.Client {
	return c.http
}

// Classify sends the JPEG frame to /predict and returns every box the service reported
func (c *Client) Classify(ctx context.Context, frame models.Frame) ([]models.RawDetection, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetFileReader("file", "frame.jpg", bytes.NewReader(frame.Data)).
		Post("/predict")
	if err != nil {
		return nil, fmt.Errorf("classifier request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("classifier bad status: %s, error: %s", resp.Status(), resp.Body())
	}

	var preds []prediction
	if err := json.Unmarshal(resp.Body(), &preds); err != nil {
		return nil, fmt.Errorf("decode classifier response: %w", err)
	}

	out := make([]models.RawDetection, 0, len(preds))
	for _, p := range preds {
		box, ok := toBBox(p.Box)
		if !ok {
			c.logger.Warn("skipping malformed box", zap.String("class", p.Class), zap.Float64s("box", p.Box))
			continue
		}
		out = append(out, models.RawDetection{Label: p.Class, Confidence: p.Score, Box: box})
	}

	c.logger.Debug("frame classified",
		zap.String("source", frame.Source),
		zap.Int("boxes", len(out)),
	)
	return out, nil
}

func toBBox(xyxy []float64) (models.BBox, bool) {
	if len(xyxy) != 4 {
		return models.BBox{}, false
	}
	x1, y1 := math.Round(xyxy[0]), math.Round(xyxy[1])
	x2, y2 := math.Round(xyxy[2]), math.Round(xyxy[3])
	return models.BBox{
		X:      int(x1),
		Y:      int(y1),
		Width:  int(x2 - x1),
		Height: int(y2 - y1),
	}, true
}
