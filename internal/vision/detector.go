//go:build gocv

package vision

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/Capitan-Parrot/distributed-video-system/sentry/internal/models"
)

const (
	personClassID = 1 // COCO id in SSD MobileNet graphs
	ssdInputSize  = 300
)

// Detector finds people in a frame. With a model it runs an SSD network
// through OpenCV DNN; without one it falls back to the HOG people
// detector, whose hits carry confidence 1 because OpenCV reports no score.
type Detector struct {
	mu  sync.Mutex
	net *gocv.Net
	hog *gocv.HOGDescriptor
}

func NewDetector(modelPath, configPath string) (*Detector, error) {
	if modelPath == "" {
		hog := gocv.NewHOGDescriptor()
		if err := hog.SetSVMDetector(gocv.HOGDefaultPeopleDetector()); err != nil {
			hog.Close()
			return nil, fmt.Errorf("hog detector: %w", err)
		}
		return &Detector{hog: &hog}, nil
	}

	for _, p := range []string{modelPath, configPath} {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			return nil, &models.ConfigError{Field: "capture.model_path", Reason: "model file not found", Err: err}
		}
	}

	net := gocv.ReadNet(modelPath, configPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network %s", modelPath)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, fmt.Errorf("set backend: %w", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, fmt.Errorf("set target: %w", err)
	}
	return &Detector{net: &net}, nil
}

func (d *Detector) Classify(_ context.Context, frame models.Frame) ([]models.RawDetection, error) {
	img, err := gocv.IMDecode(frame.Data, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	defer img.Close()
	if img.Empty() {
		return nil, fmt.Errorf("decoded image is empty")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.hog != nil {
		return d.detectHOG(img), nil
	}
	return d.detectDNN(img), nil
}

func (d *Detector) detectHOG(img gocv.Mat) []models.RawDetection {
	rects := d.hog.DetectMultiScale(img)
	out := make([]models.RawDetection, 0, len(rects))
	for _, r := range rects {
		out = append(out, models.RawDetection{Label: "person", Confidence: 1, Box: toBBox(r)})
	}
	return out
}

func (d *Detector) detectDNN(img gocv.Mat) []models.RawDetection {
	blob := gocv.BlobFromImage(img, 1.0/127.5, image.Pt(ssdInputSize, ssdInputSize),
		gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	rows := output.Reshape(1, output.Total()/7)
	defer rows.Close()

	cols, height := float32(img.Cols()), float32(img.Rows())
	var out []models.RawDetection
	for i := 0; i < rows.Rows(); i++ {
		if int(rows.GetFloatAt(i, 1)) != personClassID {
			continue
		}
		x1 := int(rows.GetFloatAt(i, 3) * cols)
		y1 := int(rows.GetFloatAt(i, 4) * height)
		x2 := int(rows.GetFloatAt(i, 5) * cols)
		y2 := int(rows.GetFloatAt(i, 6) * height)
		out = append(out, models.RawDetection{
			Label:      "person",
			Confidence: float64(rows.GetFloatAt(i, 2)),
			Box:        toBBox(image.Rect(x1, y1, x2, y2)),
		})
	}
	return out
}

func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.hog != nil {
		return d.hog.Close()
	}
	return d.net.Close()
}

func toBBox(r image.Rectangle) models.BBox {
	return models.BBox{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}
