// Package vision runs capture, person detection and frame annotation
// locally through OpenCV. It needs cgo and is only built with the gocv tag.
package vision
