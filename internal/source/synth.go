package source

import (
	"context"
	"math"
	"math/rand"

	"soundwatch/internal/config"
	"soundwatch/internal/logger"
)

var _ Source = (*Synth)(nil)

// Synth generates a sine tone with noise and periodic loud bursts that stand
// in for a failing machine.
type Synth struct {
	cfg       config.SynthConfig
	rate      int
	blockSize int
	realtime  bool
}

// NewSynth creates a synthetic source
func NewSynth(cfg config.SynthConfig, rate, blockSize int, realtime bool) *Synth {
	return &Synth{
		cfg:       cfg,
		rate:      rate,
		blockSize: blockSizeOr(blockSize, 1024),
		realtime:  realtime,
	}
}

// Name implements Source
func (s *Synth) Name() string { return "synth" }

// SampleRate implements Source
func (s *Synth) SampleRate() int { return s.rate }

// Run emits blocks until ctx is cancelled
func (s *Synth) Run(ctx context.Context, emit func([]float32)) error {
	log := logger.WithComponent("source")
	log.Info().
		Str("source", s.Name()).
		Int("sample_rate", s.rate).
		Float64("frequency", s.cfg.Frequency).
		Dur("fault_every", s.cfg.FaultEvery).
		Msg("synthetic source started")

	rng := rand.New(rand.NewSource(s.cfg.Seed))
	pace := newPacer(s.realtime, s.rate)

	var n int64
	for {
		block := make([]float32, s.blockSize)
		for i := range block {
			block[i] = s.sample(n, rng)
			n++
		}
		emit(block)

		if err := pace.wait(ctx, len(block)); err != nil {
			log.Info().Str("source", s.Name()).Int64("samples", n).Msg("synthetic source stopped")
			return nil
		}
	}
}

// sample returns sample n. During a burst the tone becomes a clipped square
// wave at FaultAmplitude.
func (s *Synth) sample(n int64, rng *rand.Rand) float32 {
	t := float64(n) / float64(s.rate)
	phase := math.Sin(2 * math.Pi * s.cfg.Frequency * t)
	noise := (rng.Float64()*2 - 1) * s.cfg.Amplitude * 0.1

	if s.inFault(t) {
		v := s.cfg.FaultAmplitude
		if phase < 0 {
			v = -v
		}
		return float32(v + noise)
	}
	return float32(s.cfg.Amplitude*phase + noise)
}

// inFault reports whether t falls in a burst: the last FaultDuration of
// every FaultEvery period.
func (s *Synth) inFault(t float64) bool {
	if s.cfg.FaultEvery <= 0 || s.cfg.FaultDuration <= 0 {
		return false
	}
	every := s.cfg.FaultEvery.Seconds()
	pos := math.Mod(t, every)
	return pos >= every-s.cfg.FaultDuration.Seconds()
}
