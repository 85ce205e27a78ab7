package source

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"soundwatch/internal/logger"
)

var _ Source = (*Raw)(nil)

// Raw reads a stream of little-endian float32 samples, mono, from a file or
// from standard input when the path is "-"
type Raw struct {
	path      string
	reader    io.Reader
	rate      int
	blockSize int
	realtime  bool
}

// NewRaw creates a raw stream source reading path
func NewRaw(path string, rate, blockSize int, realtime bool) *Raw {
	return &Raw{
		path:      path,
		rate:      rate,
		blockSize: blockSizeOr(blockSize, 1024),
		realtime:  realtime,
	}
}

// NewRawReader creates a raw stream source over r
func NewRawReader(r io.Reader, rate, blockSize int) *Raw {
	return &Raw{
		reader:    r,
		rate:      rate,
		blockSize: blockSizeOr(blockSize, 1024),
	}
}

// Name implements Source
func (r *Raw) Name() string { return "raw" }

// SampleRate implements Source
func (r *Raw) SampleRate() int { return r.rate }

// Run reads until EOF. A trailing partial sample is discarded.
func (r *Raw) Run(ctx context.Context, emit func([]float32)) error {
	in := r.reader
	if in == nil {
		switch r.path {
		case "-":
			in = os.Stdin
		default:
			f, err := os.Open(r.path)
			if err != nil {
				return fmt.Errorf("open raw stream: %w", err)
			}
			defer f.Close()
			in = f
		}
	}

	log := logger.WithComponent("source").With().Str("source", r.Name()).Logger()
	br := bufio.NewReaderSize(in, r.blockSize*4)
	pace := newPacer(r.realtime, r.rate)
	buf := make([]byte, r.blockSize*4)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		n, err := io.ReadFull(br, buf)
		if samples := n / 4; samples > 0 {
			block := make([]float32, samples)
			for i := range block {
				block[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
			}
			emit(block)
			if werr := pace.wait(ctx, samples); werr != nil {
				return nil
			}
		}

		switch {
		case err == nil:
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			log.Info().Msg("raw stream ended")
			return nil
		default:
			return fmt.Errorf("read raw stream: %w", err)
		}
	}
}

// EncodeRaw writes samples in the format Raw reads
func EncodeRaw(w io.Writer, samples []float32) error {
	return binary.Write(w, binary.LittleEndian, samples)
}
