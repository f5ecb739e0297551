package media

import "errors"

// Sentinel errors for media stream operations.
var (
	// ErrCapture indicates the raw stream could not be acquired (no device,
	// permission denied, backend failure). It is terminal for a session.
	ErrCapture = errors.New("capture failed")

	// ErrSourceBusy indicates the source already has a live stream.
	ErrSourceBusy = errors.New("source already has an active stream")

	// ErrInvalidCameraConfig indicates unusable capture dimensions or rate.
	ErrInvalidCameraConfig = errors.New("invalid camera configuration")
)
