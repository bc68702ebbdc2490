package signal

import "time"

// RGB holds per-channel mean color values for one sampled frame.
type RGB struct {
	R, G, B float64
}

// Sample is a timestamped scalar or vector measurement. Immutable once recorded.
type Sample[T any] struct {
	Timestamp time.Time
	Value     T
}

// RGBSample is the video pipeline sample type.
type RGBSample = Sample[RGB]

// PCMSample is the audio pipeline sample type (one amplitude, [-1,1]).
type PCMSample = Sample[float64]
