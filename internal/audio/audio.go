// Package audio selects where interview audio comes from and captures one
// spoken turn at a time.
//
// Three capture strategies exist. A virtual audio cable (VB-CABLE, BlackHole)
// carries the remote party's voice from a call application; if none is
// installed, the system output can be recorded through a loopback device; in
// local test mode the default microphone is used. Whatever the strategy, every
// captured Sample is 16 kHz, 16-bit, mono PCM so the transcriber has a single
// input contract.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

const (
	// SampleRate is the rate of every captured Sample.
	SampleRate = 16000
	// SampleWidth is the size of one sample in bytes.
	SampleWidth = 2
	// Channels is mono audio.
	Channels = 1
	// FramesPerBuffer is 100ms of audio at 16kHz.
	FramesPerBuffer = 1600
)

var (
	// ErrSilence means the turn was recorded but contained no audible signal.
	ErrSilence = errors.New("silence detected")

	// ErrTimeout means no speech started before the listen timeout, or the
	// device failed during the turn.
	ErrTimeout = errors.New("no speech before timeout")
)

// Mode is the operating mode chosen at startup.
type Mode int

const (
	// ModeLive listens to a call through a virtual cable or loopback device.
	ModeLive Mode = iota + 1
	// ModeLocal listens to the default microphone.
	ModeLocal
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	switch m {
	case ModeLive:
		return "live"
	case ModeLocal:
		return "local"
	default:
		return "unknown"
	}
}

// ParseMode accepts the console choices ("1", "2") and their names.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "live":
		return ModeLive, nil
	case "2", "local":
		return ModeLocal, nil
	default:
		return 0, fmt.Errorf("invalid mode %q", s)
	}
}

// Device is an audio device as reported by the host, normalized to an index
// and a display name.
type Device struct {
	Index int
	Name  string
}

// Strategy is the capture strategy selected for a session. It is one of
// VirtualCable, SystemLoopback or DefaultMicrophone.
type Strategy interface {
	// Describe returns a short human-readable description.
	Describe() string
	strategy()
}

// VirtualCable captures from a named virtual audio cable input.
type VirtualCable struct {
	DeviceIndex int
	DeviceName  string
}

// SystemLoopback records the default system output through a loopback device.
type SystemLoopback struct {
	DeviceIndex int
	DeviceName  string
}

// DefaultMicrophone captures from the host's default input device.
type DefaultMicrophone struct{}

func (VirtualCable) strategy()      {}
func (SystemLoopback) strategy()    {}
func (DefaultMicrophone) strategy() {}

func (s VirtualCable) Describe() string {
	return fmt.Sprintf("virtual cable %q (index %d)", s.DeviceName, s.DeviceIndex)
}

func (s SystemLoopback) Describe() string {
	return fmt.Sprintf("system loopback %q (index %d)", s.DeviceName, s.DeviceIndex)
}

func (DefaultMicrophone) Describe() string { return "default microphone" }

// Sample is one turn of captured audio.
type Sample struct {
	PCM         []int16
	SampleRate  int
	SampleWidth int
	Channels    int
}

// NewSample tags pcm with the fixed capture format.
func NewSample(pcm []int16) Sample {
	return Sample{
		PCM:         pcm,
		SampleRate:  SampleRate,
		SampleWidth: SampleWidth,
		Channels:    Channels,
	}
}

// Bytes returns the samples as little-endian PCM16.
func (s Sample) Bytes() []byte {
	return Int16ToBytes(s.PCM)
}

// WAV wraps the samples in a RIFF/WAVE container.
func (s Sample) WAV() []byte {
	return EncodeWAV(s.Bytes(), s.SampleRate, s.Channels, s.SampleWidth)
}

// Int16ToBytes converts int16 audio samples to bytes (little-endian PCM16).
func Int16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// BytesToInt16 converts bytes to int16 audio samples (little-endian PCM16).
func BytesToInt16(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples
}
