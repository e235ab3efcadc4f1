//go:build !gocv

package main

import (
	"github.com/Capitan-Parrot/distributed-video-system/sentry/internal/config"
	"github.com/Capitan-Parrot/distributed-video-system/sentry/internal/models"
	"github.com/Capitan-Parrot/distributed-video-system/sentry/internal/runner"
	"github.com/Capitan-Parrot/distributed-video-system/sentry/internal/services/capture"
)

func openDevice(*config.Config, *runner.Deps, *[]func()) (capture.Source, error) {
	return nil, &models.ConfigError{Field: "capture.source", Reason: "device capture needs a build with -tags gocv"}
}

// without OpenCV frames are stored as captured
func newAnnotator() runner.Annotator {
	return nil
}
