//go:build gocv

package vision

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/Capitan-Parrot/distributed-video-system/sentry/internal/models"
)

// Camera reads frames from a local capture device or stream URL
type Camera struct {
	mu     sync.Mutex
	device string
	cap    *gocv.VideoCapture
	frame  gocv.Mat
}

// OpenCamera accepts a device index ("0") or anything OpenCV can open.
// Failing to open the device is permanent.
func OpenCamera(device string) (*Camera, error) {
	var id interface{} = device
	if n, err := strconv.Atoi(device); err == nil {
		id = n
	}

	vc, err := gocv.OpenVideoCapture(id)
	if err != nil {
		return nil, &models.CaptureError{Source: device, Permanent: true, Err: fmt.Errorf("%w: %v", models.ErrDeviceGone, err)}
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, &models.CaptureError{Source: device, Permanent: true, Err: models.ErrDeviceGone}
	}

	return &Camera{device: device, cap: vc, frame: gocv.NewMat()}, nil
}

func (c *Camera) Name() string { return "device:" + c.device }

func (c *Camera) Capture(ctx context.Context) (models.Frame, error) {
	if err := ctx.Err(); err != nil {
		return models.Frame{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if ok := c.cap.Read(&c.frame); !ok || c.frame.Empty() {
		return models.Frame{}, &models.CaptureError{Source: c.Name(), Err: errors.New("failed to read frame")}
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, c.frame)
	if err != nil {
		return models.Frame{}, &models.CaptureError{Source: c.Name(), Err: fmt.Errorf("encode frame: %w", err)}
	}
	defer buf.Close()

	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())

	return models.Frame{Data: data, CapturedAt: time.Now(), Source: c.Name()}, nil
}

func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frame.Close()
	return c.cap.Close()
}
