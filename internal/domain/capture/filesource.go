package capture

import (
	"context"
	"encoding/binary"
	"image"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/hajimehoshi/go-mp3"

	platformerrors "vitalsense/internal/platform/errors"
)

// FileFrameSource replays a directory of still images (jpeg/png/bmp/webp)
// as a frame stream, for offline analysis of prerecorded face captures.
// Frames are timestamped at the configured rate regardless of decode speed.
type FileFrameSource struct {
	Dir    string
	RateHz float64
	Pacing time.Duration // real delay between frames; 0 replays immediately

	mu      sync.Mutex
	stopped bool
	done    chan struct{}
}

// Start decodes the directory listing and begins delivery. Missing or empty
// directories fail acquisition.
func (s *FileFrameSource) Start(ctx context.Context, deliver func(Frame)) error {
	if s.RateHz == 0 {
		s.RateHz = 10
	}

	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindResource, "frame source", "open frame directory", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".jpg", ".jpeg", ".png", ".bmp", ".webp":
			paths = append(paths, filepath.Join(s.Dir, e.Name()))
		}
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		return platformerrors.New(platformerrors.KindResource, "frame source", "no frame images in directory")
	}

	s.done = make(chan struct{})
	interval := time.Duration(float64(time.Second) / s.RateHz)
	base := time.Now()

	go func() {
		defer close(s.done)
		for i, path := range paths {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if s.isStopped() {
				return
			}

			f, err := decodeFrame(path)
			if err != nil {
				continue
			}
			f.Timestamp = base.Add(time.Duration(i) * interval)
			deliver(f)

			if s.Pacing > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(s.Pacing):
				}
			}
		}
	}()
	return nil
}

func decodeFrame(path string) (Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return Frame{}, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return Frame{}, err
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	px := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, a := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			idx := (y*w + x) * 4
			px[idx] = byte(r >> 8)
			px[idx+1] = byte(g >> 8)
			px[idx+2] = byte(b >> 8)
			px[idx+3] = byte(a >> 8)
		}
	}
	return Frame{Pixels: px, Width: w, Height: h}, nil
}

func (s *FileFrameSource) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// Stop halts delivery. Safe to call repeatedly.
func (s *FileFrameSource) Stop() error {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	return nil
}

// Wait blocks until the delivery goroutine exits.
func (s *FileFrameSource) Wait() {
	if s.done != nil {
		<-s.done
	}
}

// MP3AudioSource replays an MP3 file as mono PCM blocks, for offline voice
// analysis. The decoder always yields 16-bit little-endian stereo at the
// file's sample rate; channels are averaged down to mono.
type MP3AudioSource struct {
	Path      string
	BlockSize int           // samples per delivered block
	Pacing    time.Duration // real delay between blocks; 0 replays immediately

	mu      sync.Mutex
	stopped bool
	done    chan struct{}
}

// Start opens and decodes the file, then begins block delivery.
func (s *MP3AudioSource) Start(ctx context.Context, deliver func(AudioBlock)) error {
	if s.BlockSize == 0 {
		s.BlockSize = 4096
	}

	file, err := os.Open(s.Path)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindResource, "audio source", "open mp3 file", err)
	}

	dec, err := mp3.NewDecoder(file)
	if err != nil {
		file.Close()
		return platformerrors.Wrap(platformerrors.KindResource, "audio source", "decode mp3 header", err)
	}

	s.done = make(chan struct{})
	rate := dec.SampleRate()
	base := time.Now()
	step := time.Second / time.Duration(rate)

	go func() {
		defer close(s.done)
		defer file.Close()

		raw := make([]byte, s.BlockSize*4) // 2 channels * 2 bytes
		delivered := 0
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if s.isStopped() {
				return
			}

			n, err := io.ReadFull(dec, raw)
			if n == 0 {
				return
			}

			samples := make([]float64, n/4)
			for i := range samples {
				l := int16(binary.LittleEndian.Uint16(raw[i*4:]))
				r := int16(binary.LittleEndian.Uint16(raw[i*4+2:]))
				samples[i] = (float64(l) + float64(r)) / 2 / 32768
			}

			deliver(AudioBlock{
				Samples:    samples,
				SampleRate: rate,
				Timestamp:  base.Add(time.Duration(delivered) * step),
			})
			delivered += len(samples)

			if err != nil {
				return
			}

			if s.Pacing > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(s.Pacing):
				}
			}
		}
	}()
	return nil
}

func (s *MP3AudioSource) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// Stop halts delivery. Safe to call repeatedly.
func (s *MP3AudioSource) Stop() error {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	return nil
}

// Wait blocks until the delivery goroutine exits.
func (s *MP3AudioSource) Wait() {
	if s.done != nil {
		<-s.done
	}
}
