package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// EncodeWAV wraps raw PCM data in a WAV container.
func EncodeWAV(pcm []byte, sampleRate, channels, bytesPerSample int) []byte {
	dataLen := len(pcm)
	fileLen := 36 + dataLen // 44-byte header minus 8 bytes for RIFF header = 36

	buf := &bytes.Buffer{}
	buf.Grow(44 + dataLen)

	// RIFF header
	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, uint32(fileLen))
	buf.WriteString("WAVE")

	// fmt subchunk
	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate*channels*bytesPerSample))
	_ = binary.Write(buf, binary.LittleEndian, uint16(channels*bytesPerSample))
	_ = binary.Write(buf, binary.LittleEndian, uint16(bytesPerSample*8))

	// data subchunk
	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, uint32(dataLen))
	buf.Write(pcm)

	return buf.Bytes()
}

// WAVInfo is the format of a decoded WAV payload.
type WAVInfo struct {
	SampleRate     int
	Channels       int
	BytesPerSample int
}

// DecodeWAV extracts the PCM payload from a canonical 44-byte-header WAV.
func DecodeWAV(wav []byte) ([]byte, WAVInfo, error) {
	if len(wav) < 44 || string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return nil, WAVInfo{}, errors.New("not a RIFF/WAVE payload")
	}
	info := WAVInfo{
		Channels:       int(binary.LittleEndian.Uint16(wav[22:24])),
		SampleRate:     int(binary.LittleEndian.Uint32(wav[24:28])),
		BytesPerSample: int(binary.LittleEndian.Uint16(wav[34:36])) / 8,
	}
	dataLen := int(binary.LittleEndian.Uint32(wav[40:44]))
	if 44+dataLen > len(wav) {
		return nil, info, fmt.Errorf("wav data chunk truncated: want %d bytes, have %d", dataLen, len(wav)-44)
	}
	return wav[44 : 44+dataLen], info, nil
}
