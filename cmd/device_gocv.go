//go:build gocv

package main

import (
	"github.com/Capitan-Parrot/distributed-video-system/sentry/internal/config"
	"github.com/Capitan-Parrot/distributed-video-system/sentry/internal/runner"
	"github.com/Capitan-Parrot/distributed-video-system/sentry/internal/services/capture"
	"github.com/Capitan-Parrot/distributed-video-system/sentry/internal/vision"
)

func openDevice(cfg *config.Config, deps *runner.Deps, closers *[]func()) (capture.Source, error) {
	camera, err := vision.OpenCamera(cfg.Capture.DeviceID)
	if err != nil {
		return nil, err
	}
	*closers = append(*closers, func() { _ = camera.Close() })

	detector, err := vision.NewDetector(cfg.Capture.ModelPath, cfg.Capture.ModelConfig)
	if err != nil {
		return nil, err
	}
	*closers = append(*closers, func() { _ = detector.Close() })

	deps.Classifier = detector
	deps.Annotator = vision.Annotator{}
	return camera, nil
}

func newAnnotator() runner.Annotator {
	return vision.Annotator{}
}
