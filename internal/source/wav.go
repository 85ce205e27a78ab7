package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"soundwatch/internal/logger"
)

var _ Source = (*WAV)(nil)

// WAV plays a PCM wave file, mixed down to mono and scaled to [-1,1]
type WAV struct {
	path      string
	blockSize int
	realtime  bool
	loop      bool

	rate int
}

// NewWAV creates a file source. With loop set the file restarts at EOF until
// ctx is cancelled.
func NewWAV(path string, blockSize int, realtime, loop bool) *WAV {
	return &WAV{
		path:      path,
		blockSize: blockSizeOr(blockSize, 1024),
		realtime:  realtime,
		loop:      loop,
	}
}

// Name implements Source
func (w *WAV) Name() string { return "wav" }

// SampleRate returns the file's rate, reading the header on first use. It
// returns 0 when the file cannot be read.
func (w *WAV) SampleRate() int {
	if w.rate == 0 {
		f, err := os.Open(w.path)
		if err != nil {
			return 0
		}
		defer f.Close()

		dec := wav.NewDecoder(f)
		dec.ReadInfo()
		w.rate = int(dec.SampleRate)
	}
	return w.rate
}

// Run decodes the file block by block
func (w *WAV) Run(ctx context.Context, emit func([]float32)) error {
	log := logger.WithComponent("source").With().Str("source", w.Name()).Str("path", w.path).Logger()

	for {
		done, err := w.play(ctx, emit)
		if err != nil {
			return err
		}
		if done || !w.loop {
			log.Info().Msg("wav source finished")
			return nil
		}
		log.Debug().Msg("wav source looping")
	}
}

// play decodes the file once. done is true when ctx was cancelled.
func (w *WAV) play(ctx context.Context, emit func([]float32)) (done bool, err error) {
	f, err := os.Open(w.path)
	if err != nil {
		return false, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return false, fmt.Errorf("%s is not a valid wav file", w.path)
	}
	dec.ReadInfo()
	if dec.WavAudioFormat != 1 {
		return false, fmt.Errorf("unsupported wav format %d, want PCM", dec.WavAudioFormat)
	}

	channels := int(dec.NumChans)
	if channels <= 0 {
		return false, errors.New("wav file declares no channels")
	}
	w.rate = int(dec.SampleRate)

	bitDepth := int(dec.BitDepth)
	scale := float32(int64(1) << (bitDepth - 1))
	pace := newPacer(w.realtime, w.rate)

	buf := &audio.IntBuffer{
		Format: dec.Format(),
		Data:   make([]int, w.blockSize*channels),
	}

	for {
		n, err := dec.PCMBuffer(buf)
		if err != nil {
			return false, fmt.Errorf("decode wav: %w", err)
		}
		if n == 0 {
			if err := dec.Err(); err != nil && !errors.Is(err, io.EOF) {
				return false, fmt.Errorf("decode wav: %w", err)
			}
			return false, nil
		}

		frames := n / channels
		block := make([]float32, frames)
		for i := 0; i < frames; i++ {
			var sum float32
			for c := 0; c < channels; c++ {
				v := buf.Data[i*channels+c]
				if bitDepth == 8 {
					// 8-bit PCM is unsigned
					v -= 128
				}
				sum += float32(v)
			}
			block[i] = sum / float32(channels) / scale
		}
		emit(block)

		if err := pace.wait(ctx, frames); err != nil {
			return true, nil
		}
	}
}
