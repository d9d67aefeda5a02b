// Package portaudio implements device enumeration, capture streams and
// playback for the audio package on top of PortAudio.
//
// PortAudio exposes loopback differently per host: PulseAudio/PipeWire list a
// "Monitor of <sink>" input for every output, Windows drivers often expose
// "Stereo Mix". DefaultLoopback looks for the monitor of the default output
// first, then for any input named like a loopback device.
package portaudio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/nadzzz/sidekick/internal/audio"
)

// loopbackKeywords name inputs that record the system output.
var loopbackKeywords = []string{"monitor", "loopback", "stereo mix", "what u hear", "mixagem estéreo"}

// playbackFramesPerBuffer is ~46ms at 22050 Hz.
const playbackFramesPerBuffer = 1024

// Host owns the PortAudio library lifetime.
type Host struct {
	mu     sync.Mutex
	closed bool
}

// Open initializes PortAudio. Close must be called to release it.
func Open() (*Host, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return &Host{}, nil
}

// Close terminates PortAudio.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	return portaudio.Terminate()
}

// InputDevices lists every device with at least one input channel.
func (h *Host) InputDevices() ([]audio.Device, error) {
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	var out []audio.Device
	for _, d := range infos {
		if d.MaxInputChannels > 0 {
			out = append(out, audio.Device{Index: d.Index, Name: d.Name})
		}
	}
	slog.Debug("portaudio input devices", "count", len(out))
	return out, nil
}

// DefaultLoopback returns the input device recording the default output.
func (h *Host) DefaultLoopback() (audio.Device, error) {
	speaker, err := portaudio.DefaultOutputDevice()
	if err != nil {
		return audio.Device{}, fmt.Errorf("resolving default output device: %w", err)
	}
	inputs, err := h.InputDevices()
	if err != nil {
		return audio.Device{}, err
	}
	d, ok := matchLoopback(inputs, speaker.Name)
	if !ok {
		return audio.Device{}, fmt.Errorf("no loopback input for output device %q", speaker.Name)
	}
	return d, nil
}

// matchLoopback prefers the monitor of the named output over any other
// loopback-like input.
func matchLoopback(inputs []audio.Device, outputName string) (audio.Device, bool) {
	monitor := "monitor of " + strings.ToLower(outputName)
	for _, d := range inputs {
		if strings.Contains(strings.ToLower(d.Name), monitor) {
			return d, true
		}
	}
	for _, d := range inputs {
		name := strings.ToLower(d.Name)
		for _, kw := range loopbackKeywords {
			if strings.Contains(name, kw) {
				return d, true
			}
		}
	}
	return audio.Device{}, false
}

// OpenInput opens a 16 kHz mono int16 stream. A negative index selects the
// default input device.
func (h *Host) OpenInput(deviceIndex int) (audio.InputStream, error) {
	buf := make([]int16, audio.FramesPerBuffer)
	stream, err := h.openCapture(deviceIndex, &buf)
	if err != nil {
		return nil, err
	}
	return &inputStream{stream: stream, buf: buf}, nil
}

// OpenLoopback opens a 16 kHz mono float32 stream on a loopback input.
func (h *Host) OpenLoopback(deviceIndex int) (audio.LoopbackStream, error) {
	buf := make([]float32, audio.FramesPerBuffer)
	stream, err := h.openCapture(deviceIndex, &buf)
	if err != nil {
		return nil, err
	}
	return &loopbackStream{stream: stream, buf: buf}, nil
}

func (h *Host) openCapture(deviceIndex int, buf any) (*portaudio.Stream, error) {
	var (
		stream *portaudio.Stream
		err    error
	)
	switch b := buf.(type) {
	case *[]int16:
		if deviceIndex < 0 {
			stream, err = portaudio.OpenDefaultStream(audio.Channels, 0, audio.SampleRate, audio.FramesPerBuffer, *b)
		} else {
			stream, err = openDevice(deviceIndex, *b)
		}
	case *[]float32:
		stream, err = openDevice(deviceIndex, *b)
	default:
		return nil, fmt.Errorf("unsupported buffer type %T", buf)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("failed to start input stream: %w", err)
	}
	return stream, nil
}

func openDevice(deviceIndex int, buf any) (*portaudio.Stream, error) {
	info, err := deviceByIndex(deviceIndex)
	if err != nil {
		return nil, err
	}
	params := portaudio.HighLatencyParameters(info, nil)
	params.Input.Channels = audio.Channels
	params.SampleRate = audio.SampleRate
	params.FramesPerBuffer = audio.FramesPerBuffer
	return portaudio.OpenStream(params, buf)
}

func deviceByIndex(idx int) (*portaudio.DeviceInfo, error) {
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	for _, d := range infos {
		if d.Index == idx {
			return d, nil
		}
	}
	return nil, fmt.Errorf("device index %d not found", idx)
}

type inputStream struct {
	stream *portaudio.Stream
	buf    []int16
}

func (s *inputStream) Read(frame []int16) error {
	if err := s.stream.Read(); err != nil && !errors.Is(err, portaudio.InputOverflowed) {
		return err
	}
	copy(frame, s.buf)
	return nil
}

func (s *inputStream) Close() error {
	stopErr := s.stream.Stop()
	closeErr := s.stream.Close()
	return errors.Join(stopErr, closeErr)
}

type loopbackStream struct {
	stream *portaudio.Stream
	buf    []float32
}

func (s *loopbackStream) Read(frame []float32) error {
	if err := s.stream.Read(); err != nil && !errors.Is(err, portaudio.InputOverflowed) {
		return err
	}
	copy(frame, s.buf)
	return nil
}

func (s *loopbackStream) Close() error {
	stopErr := s.stream.Stop()
	closeErr := s.stream.Close()
	return errors.Join(stopErr, closeErr)
}

// Play writes mono int16 PCM to the default output device and blocks until
// it has been handed to the driver. The stream is opened and closed per call.
func (h *Host) Play(ctx context.Context, pcm []int16, sampleRate int) error {
	out := make([]int16, playbackFramesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(sampleRate), len(out), out)
	if err != nil {
		return fmt.Errorf("failed to open output stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("failed to start output stream: %w", err)
	}
	defer stream.Stop()

	for off := 0; off < len(pcm); off += len(out) {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := copy(out, pcm[off:])
		clear(out[n:])
		if err := stream.Write(); err != nil && !errors.Is(err, portaudio.OutputUnderflowed) {
			return fmt.Errorf("writing output stream: %w", err)
		}
	}
	return nil
}
