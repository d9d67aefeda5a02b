package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"
)

// InputStream reads 16 kHz mono int16 frames from an opened device.
type InputStream interface {
	// Read blocks until frame is filled.
	Read(frame []int16) error
	Close() error
}

// LoopbackStream reads 16 kHz mono float32 frames, normalized to [-1, 1],
// from a loopback device.
type LoopbackStream interface {
	Read(frame []float32) error
	Close() error
}

// StreamSource opens per-turn device streams.
type StreamSource interface {
	// OpenInput opens a capture stream on the device with the given index,
	// or on the default input device when index is negative.
	OpenInput(deviceIndex int) (InputStream, error)

	// OpenLoopback opens a capture stream on a loopback device.
	OpenLoopback(deviceIndex int) (LoopbackStream, error)
}

// CaptureOptions controls turn-end detection.
type CaptureOptions struct {
	// CalibrationWindow is how long ambient noise is measured before listening.
	CalibrationWindow time.Duration
	// ListenTimeout is the longest wait for the first speech frame.
	ListenTimeout time.Duration
	// PhraseTimeLimit caps the length of a phrase once speech started.
	PhraseTimeLimit time.Duration
	// PauseThreshold is the trailing silence that ends a phrase.
	PauseThreshold time.Duration
	// EnergyThreshold is the minimum RMS (int16 scale) considered speech.
	EnergyThreshold float64
	// LoopbackWindow is the fixed recording window for loopback capture.
	LoopbackWindow time.Duration
	// LoopbackThreshold is the peak amplitude, on [-1, 1], below which a
	// loopback recording is silence.
	LoopbackThreshold float64
}

// DefaultCaptureOptions returns the timings used by the interviewer.
func DefaultCaptureOptions() CaptureOptions {
	return CaptureOptions{
		CalibrationWindow: time.Second,
		ListenTimeout:     7 * time.Second,
		PhraseTimeLimit:   15 * time.Second,
		PauseThreshold:    800 * time.Millisecond,
		EnergyThreshold:   300,
		LoopbackWindow:    7 * time.Second,
		LoopbackThreshold: 0.01,
	}
}

// ambientMultiplier scales the calibrated noise floor into a speech threshold.
const ambientMultiplier = 1.5

// preRollFrames are kept from before speech onset so the first syllable is not clipped.
const preRollFrames = 3

const frameDuration = time.Duration(FramesPerBuffer) * time.Second / SampleRate

// Capturer records one turn of audio for a strategy.
type Capturer struct {
	source StreamSource
	opts   CaptureOptions
	out    io.Writer
}

// NewCapturer creates a capturer over the given stream source.
func NewCapturer(source StreamSource, opts CaptureOptions, out io.Writer) *Capturer {
	return &Capturer{source: source, opts: opts, out: out}
}

// Capture records one turn. It returns ErrSilence or ErrTimeout when the
// turn produced nothing to transcribe; device failures are reported as
// ErrTimeout so a broken turn never ends the session. Only context
// cancellation is returned as-is.
func (c *Capturer) Capture(ctx context.Context, s Strategy) (Sample, error) {
	var (
		sample Sample
		err    error
		window = c.opts.ListenTimeout
		start  = time.Now()
	)
	switch st := s.(type) {
	case VirtualCable:
		c.printf("\nOuvindo via Cabo Virtual (Principal)... Fale na chamada.\n")
		sample, err = c.listen(ctx, st.DeviceIndex)
	case DefaultMicrophone:
		c.printf("\nOuvindo seu microfone... Fale agora.\n")
		sample, err = c.listen(ctx, -1)
	case SystemLoopback:
		c.printf("\nOuvindo via Loopback (Fallback)... Fale na chamada durante os próximos %d segundos.\n",
			int(c.opts.LoopbackWindow.Seconds()))
		window = c.opts.LoopbackWindow
		sample, err = c.record(ctx, st.DeviceIndex)
	default:
		return Sample{}, fmt.Errorf("unknown capture strategy %T", s)
	}

	switch {
	case err == nil:
		return sample, nil
	case ctx.Err() != nil:
		return Sample{}, ctx.Err()
	case errors.Is(err, ErrSilence):
		c.printf("Silêncio detectado durante o período de gravação.\n")
		return Sample{}, ErrSilence
	case errors.Is(err, ErrTimeout):
		c.printf("Silêncio detectado.\n")
		return Sample{}, ErrTimeout
	default:
		c.printf("Erro no dispositivo de áudio: %v\n", err)
		slog.Warn("capture failed, treating turn as timeout", "strategy", s.Describe(), "error", err)
		// Retries on a failing device are paced by the turn window.
		if err := wait(ctx, window-time.Since(start)); err != nil {
			return Sample{}, err
		}
		return Sample{}, ErrTimeout
	}
}

// wait blocks for d or until ctx is done.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// listen calibrates against ambient noise, waits for speech, and records
// until a pause or the phrase limit.
func (c *Capturer) listen(ctx context.Context, deviceIndex int) (Sample, error) {
	stream, err := c.source.OpenInput(deviceIndex)
	if err != nil {
		return Sample{}, fmt.Errorf("opening input stream: %w", err)
	}
	defer func() {
		if cerr := stream.Close(); cerr != nil {
			slog.Debug("closing input stream", "error", cerr)
		}
	}()

	frame := make([]int16, FramesPerBuffer)
	read := func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := stream.Read(frame); err != nil {
			return fmt.Errorf("reading input stream: %w", err)
		}
		return nil
	}

	// Ambient noise calibration.
	var ambient float64
	calFrames := framesFor(c.opts.CalibrationWindow)
	for i := 0; i < calFrames; i++ {
		if err := read(); err != nil {
			return Sample{}, err
		}
		ambient = math.Max(ambient, RMS(frame))
	}
	threshold := math.Max(c.opts.EnergyThreshold, ambient*ambientMultiplier)
	slog.Debug("ambient noise calibrated", "ambient_rms", ambient, "threshold", threshold)

	// Wait for speech onset.
	var preRoll [][]int16
	waitFrames := framesFor(c.opts.ListenTimeout)
	started := false
	for i := 0; i < waitFrames; i++ {
		if err := read(); err != nil {
			return Sample{}, err
		}
		if RMS(frame) > threshold {
			started = true
			break
		}
		preRoll = append(preRoll, cloneFrame(frame))
		if len(preRoll) > preRollFrames {
			preRoll = preRoll[1:]
		}
	}
	if !started {
		return Sample{}, ErrTimeout
	}

	pcm := make([]int16, 0, framesFor(c.opts.PhraseTimeLimit)*FramesPerBuffer)
	for _, f := range preRoll {
		pcm = append(pcm, f...)
	}
	pcm = append(pcm, frame...)

	// Record until a pause or the phrase limit.
	phraseFrames := framesFor(c.opts.PhraseTimeLimit)
	pauseFrames := framesFor(c.opts.PauseThreshold)
	silent := 0
	for n := 1; n < phraseFrames; n++ {
		if err := read(); err != nil {
			return Sample{}, err
		}
		pcm = append(pcm, frame...)
		if RMS(frame) > threshold {
			silent = 0
			continue
		}
		silent++
		if silent >= pauseFrames {
			break
		}
	}

	return NewSample(pcm), nil
}

// record captures a fixed loopback window and applies the peak threshold.
func (c *Capturer) record(ctx context.Context, deviceIndex int) (Sample, error) {
	stream, err := c.source.OpenLoopback(deviceIndex)
	if err != nil {
		return Sample{}, fmt.Errorf("opening loopback stream: %w", err)
	}
	defer func() {
		if cerr := stream.Close(); cerr != nil {
			slog.Debug("closing loopback stream", "error", cerr)
		}
	}()

	total := framesFor(c.opts.LoopbackWindow)
	samples := make([]float32, 0, total*FramesPerBuffer)
	frame := make([]float32, FramesPerBuffer)
	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return Sample{}, err
		}
		if err := stream.Read(frame); err != nil {
			return Sample{}, fmt.Errorf("reading loopback stream: %w", err)
		}
		samples = append(samples, frame...)
	}

	if len(samples) == 0 || Peak(samples) <= c.opts.LoopbackThreshold {
		return Sample{}, ErrSilence
	}
	c.printf("Gravação concluída, transcrevendo...\n")
	return NewSample(FloatToInt16(samples)), nil
}

func (c *Capturer) printf(format string, args ...any) {
	if c.out != nil {
		fmt.Fprintf(c.out, format, args...)
	}
}

// framesFor converts a duration to a whole number of frames, at least one.
func framesFor(d time.Duration) int {
	n := int((d + frameDuration - 1) / frameDuration)
	if n < 1 {
		return 1
	}
	return n
}

func cloneFrame(f []int16) []int16 {
	out := make([]int16, len(f))
	copy(out, f)
	return out
}

// RMS returns the root mean square of samples on the int16 scale.
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// Peak returns the largest absolute sample value.
func Peak(samples []float32) float64 {
	var peak float64
	for _, s := range samples {
		if v := math.Abs(float64(s)); v > peak {
			peak = v
		}
	}
	return peak
}

// FloatToInt16 scales normalized float samples to int16, clamping overflow.
func FloatToInt16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		v := float64(s) * math.MaxInt16
		switch {
		case v > math.MaxInt16:
			v = math.MaxInt16
		case v < math.MinInt16:
			v = math.MinInt16
		}
		out[i] = int16(v)
	}
	return out
}
