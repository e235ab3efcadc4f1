//go:build gocv

package vision

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/Capitan-Parrot/distributed-video-system/sentry/internal/models"
)

var boxColor = color.RGBA{G: 255, A: 255}

// Annotator draws a green box and a "Human" caption for every detection
type Annotator struct{}

func (Annotator) Annotate(frame []byte, detections []models.Detection) ([]byte, error) {
	mat, err := gocv.IMDecode(frame, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	defer mat.Close()
	if mat.Empty() {
		return nil, fmt.Errorf("decoded image is empty")
	}

	for _, d := range detections {
		rect := image.Rect(d.Box.X, d.Box.Y, d.Box.X+d.Box.Width, d.Box.Y+d.Box.Height)
		if err := gocv.Rectangle(&mat, rect, boxColor, 2); err != nil {
			return nil, fmt.Errorf("failed to draw rectangle: %w", err)
		}
		label := fmt.Sprintf("Human %.2f", d.Confidence)
		if err := gocv.PutText(&mat, label, image.Pt(d.Box.X, d.Box.Y-10), gocv.FontHersheySimplex, 0.5, boxColor, 2); err != nil {
			return nil, fmt.Errorf("failed to draw text: %w", err)
		}
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}
