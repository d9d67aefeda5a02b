package audio

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedInput fills each frame with a constant amplitude taken from levels.
// Once levels run out the last level repeats.
type scriptedInput struct {
	levels  []int16
	readErr error
	pos     int
	closed  bool
}

func (s *scriptedInput) Read(frame []int16) error {
	if s.readErr != nil {
		return s.readErr
	}
	lvl := s.levels[len(s.levels)-1]
	if s.pos < len(s.levels) {
		lvl = s.levels[s.pos]
	}
	s.pos++
	for i := range frame {
		frame[i] = lvl
	}
	return nil
}

func (s *scriptedInput) Close() error { s.closed = true; return nil }

type constLoopback struct {
	level  float32
	reads  int
	closed bool
}

func (c *constLoopback) Read(frame []float32) error {
	c.reads++
	for i := range frame {
		frame[i] = c.level
	}
	return nil
}

func (c *constLoopback) Close() error { c.closed = true; return nil }

type fakeSource struct {
	input    *scriptedInput
	loopback *constLoopback
	openErr  error

	openedIndex int
}

func (f *fakeSource) OpenInput(idx int) (InputStream, error) {
	f.openedIndex = idx
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f.input, nil
}

func (f *fakeSource) OpenLoopback(idx int) (LoopbackStream, error) {
	f.openedIndex = idx
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f.loopback, nil
}

// testOptions uses 100ms frames: 1 calibration frame, 3 frames of listen
// timeout, 10 frames of phrase limit, 2 frames of pause.
func testOptions() CaptureOptions {
	return CaptureOptions{
		CalibrationWindow: 100 * time.Millisecond,
		ListenTimeout:     300 * time.Millisecond,
		PhraseTimeLimit:   time.Second,
		PauseThreshold:    200 * time.Millisecond,
		EnergyThreshold:   300,
		LoopbackWindow:    300 * time.Millisecond,
		LoopbackThreshold: 0.01,
	}
}

const (
	quiet int16 = 10
	loud  int16 = 5000
)

func TestCapture_RecordsPhraseUntilPause(t *testing.T) {
	in := &scriptedInput{levels: []int16{quiet, quiet, loud, loud, quiet, quiet, loud}}
	src := &fakeSource{input: in}

	s, err := NewCapturer(src, testOptions(), nil).Capture(context.Background(), VirtualCable{DeviceIndex: 4})
	require.NoError(t, err)

	// pre-roll quiet + loud + loud + two quiet frames of pause
	assert.Len(t, s.PCM, 5*FramesPerBuffer)
	assert.Equal(t, SampleRate, s.SampleRate)
	assert.Equal(t, SampleWidth, s.SampleWidth)
	assert.Equal(t, Channels, s.Channels)
	assert.Equal(t, 4, src.openedIndex)
	assert.True(t, in.closed)
}

func TestCapture_DefaultMicrophoneOpensDefaultDevice(t *testing.T) {
	src := &fakeSource{input: &scriptedInput{levels: []int16{quiet, loud, quiet}}}

	_, err := NewCapturer(src, testOptions(), nil).Capture(context.Background(), DefaultMicrophone{})
	require.NoError(t, err)
	assert.Equal(t, -1, src.openedIndex)
}

func TestCapture_PhraseTimeLimit(t *testing.T) {
	src := &fakeSource{input: &scriptedInput{levels: []int16{quiet, loud}}}

	s, err := NewCapturer(src, testOptions(), nil).Capture(context.Background(), DefaultMicrophone{})
	require.NoError(t, err)
	assert.Len(t, s.PCM, 10*FramesPerBuffer)
}

func TestCapture_TimeoutWhenNoSpeech(t *testing.T) {
	var out bytes.Buffer
	in := &scriptedInput{levels: []int16{quiet}}
	src := &fakeSource{input: in}

	_, err := NewCapturer(src, testOptions(), &out).Capture(context.Background(), DefaultMicrophone{})
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Contains(t, out.String(), "Silêncio detectado.")
	assert.True(t, in.closed)
}

func TestCapture_CalibrationRaisesThreshold(t *testing.T) {
	// Ambient at 1000 puts the threshold at 1500, above the 1200 "speech".
	src := &fakeSource{input: &scriptedInput{levels: []int16{1000, 1200}}}

	_, err := NewCapturer(src, testOptions(), nil).Capture(context.Background(), DefaultMicrophone{})
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestCapture_DeviceErrorsBecomeTimeout(t *testing.T) {
	t.Run("open", func(t *testing.T) {
		var out bytes.Buffer
		src := &fakeSource{openErr: errors.New("device busy")}

		_, err := NewCapturer(src, testOptions(), &out).Capture(context.Background(), VirtualCable{DeviceIndex: 1})
		assert.ErrorIs(t, err, ErrTimeout)
		assert.Contains(t, out.String(), "device busy")
	})
	t.Run("read", func(t *testing.T) {
		in := &scriptedInput{readErr: errors.New("input overflowed")}
		src := &fakeSource{input: in}

		_, err := NewCapturer(src, testOptions(), nil).Capture(context.Background(), DefaultMicrophone{})
		assert.ErrorIs(t, err, ErrTimeout)
		assert.True(t, in.closed)
	})
}

func TestCapture_DeviceFailureWaitsOutTheWindow(t *testing.T) {
	cases := []struct {
		name     string
		strategy Strategy
	}{
		{"listen", VirtualCable{DeviceIndex: 1}},
		{"loopback", SystemLoopback{DeviceIndex: 8}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src := &fakeSource{openErr: errors.New("device unplugged")}
			c := NewCapturer(src, testOptions(), nil)

			start := time.Now()
			_, err := c.Capture(context.Background(), tc.strategy)
			elapsed := time.Since(start)

			assert.ErrorIs(t, err, ErrTimeout)
			assert.GreaterOrEqual(t, elapsed, 250*time.Millisecond)
			assert.Less(t, elapsed, 2*time.Second)
		})
	}
}

func TestCapture_DeviceFailureWaitEndsOnCancel(t *testing.T) {
	opts := testOptions()
	opts.ListenTimeout = time.Minute
	src := &fakeSource{openErr: errors.New("device unplugged")}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := NewCapturer(src, opts, nil).Capture(ctx, DefaultMicrophone{})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestCapture_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := &fakeSource{input: &scriptedInput{levels: []int16{loud}}}

	_, err := NewCapturer(src, testOptions(), nil).Capture(ctx, DefaultMicrophone{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCapture_LoopbackSilence(t *testing.T) {
	var out bytes.Buffer
	lb := &constLoopback{level: 0.005}
	src := &fakeSource{loopback: lb}

	_, err := NewCapturer(src, testOptions(), &out).Capture(context.Background(), SystemLoopback{DeviceIndex: 8})
	assert.ErrorIs(t, err, ErrSilence)
	assert.Equal(t, 3, lb.reads, "loopback records the whole window regardless of activity")
	assert.True(t, lb.closed)
	assert.Contains(t, out.String(), "Silêncio detectado durante o período de gravação.")
}

func TestCapture_LoopbackNormalizesToInt16(t *testing.T) {
	lb := &constLoopback{level: -0.5}
	src := &fakeSource{loopback: lb}

	s, err := NewCapturer(src, testOptions(), nil).Capture(context.Background(), SystemLoopback{DeviceIndex: 8})
	require.NoError(t, err)

	require.Len(t, s.PCM, 3*FramesPerBuffer)
	assert.Equal(t, int16(-16383), s.PCM[0])
	assert.Equal(t, SampleRate, s.SampleRate)
	assert.Equal(t, 8, src.openedIndex)
}

func TestFloatToInt16_Clamps(t *testing.T) {
	got := FloatToInt16([]float32{1.5, -1.5, 0})
	assert.Equal(t, []int16{32767, -32768, 0}, got)
}

func TestSampleWAVRoundTrip(t *testing.T) {
	s := NewSample([]int16{1, -2, 300, -32768})

	pcm, info, err := DecodeWAV(s.WAV())
	require.NoError(t, err)
	assert.Equal(t, WAVInfo{SampleRate: 16000, Channels: 1, BytesPerSample: 2}, info)
	assert.Equal(t, s.PCM, BytesToInt16(pcm))
}
