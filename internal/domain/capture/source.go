package capture

import (
	"context"
	"time"
)

// Frame is one video frame as delivered by a camera implementation.
// Pixels is tightly packed RGBA, row-major, 4 bytes per pixel.
type Frame struct {
	Pixels    []byte
	Width     int
	Height    int
	Timestamp time.Time
}

// AudioBlock is one block of PCM audio. Samples are mono, [-1,1].
type AudioBlock struct {
	Samples    []float64
	SampleRate int
	Timestamp  time.Time
}

// FrameSource abstracts a camera. Start begins frame delivery to the given
// callback and returns once the device is acquired; acquisition failure
// (permission denied, device absent, device busy) is returned as an error.
// Stop halts delivery and releases the device. Stop must be safe to call
// more than once.
type FrameSource interface {
	Start(ctx context.Context, deliver func(Frame)) error
	Stop() error
}

// AudioSource abstracts a microphone, with the same lifecycle as FrameSource.
type AudioSource interface {
	Start(ctx context.Context, deliver func(AudioBlock)) error
	Stop() error
}
