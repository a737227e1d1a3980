package recorder

import (
	"context"

	"github.com/sirupsen/logrus"
)

// CaptureController drives the video side of a recording
type CaptureController interface {
	StartCapture(ctx context.Context, sessionID string) error
	StopCapture(ctx context.Context) error
}

// NoopCapture records events only. It logs what a real capture backend
// would have been asked to do.
type NoopCapture struct {
	Log logrus.FieldLogger
}

func (n NoopCapture) StartCapture(_ context.Context, sessionID string) error {
	if n.Log != nil {
		n.Log.WithField("session", sessionID).Debug("[Capture] Events-only recording, no video capture")
	}
	return nil
}

func (n NoopCapture) StopCapture(context.Context) error {
	return nil
}
