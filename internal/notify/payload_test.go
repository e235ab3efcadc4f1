package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCompose(t *testing.T) {
	event := newEvent()
	p := Compose(event, time.UTC)

	assert.Equal(t, "Security Alert: 2 Human(s) Detected", p.Title)
	assert.Contains(t, p.Body, "Human presence detected at 2024-03-01 23:30:00 UTC.")
	assert.Contains(t, p.Body, "Detections in frame: 2")
	assert.Contains(t, p.Body, "confidence 0.80, area 5000 px, box x=10 y=20 w=50 h=100")
	assert.Contains(t, p.Body, "Snapshot: detections/detection_20240301_233000.jpg")
	assert.Contains(t, p.Body, "Alert ID: "+event.ID)
	assert.NotContains(t, p.Body, "Link:")
	assert.Same(t, event, p.Event)
}

func TestCompose_Location(t *testing.T) {
	loc := time.FixedZone("EET", 2*60*60)
	p := Compose(newEvent(), loc)
	assert.Contains(t, p.Body, "2024-03-02 01:30:00 EET")
}
