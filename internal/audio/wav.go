// Package audio reads and writes the PCM WAV framing used to make each
// voice chunk self-contained. Payloads stay opaque to the relay; only the
// client ends touch this.
package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"
)

const headerLen = 44

type header struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32
}

// Encode frames 16-bit mono PCM samples as a WAV blob.
func Encode(samples []int16, sampleRate int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("audio: no samples to encode")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("audio: invalid sample rate %d", sampleRate)
	}

	dataSize := uint32(len(samples) * 2)
	h := header{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   1,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * 2,
		BlockAlign:    2,
		BitsPerSample: 16,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, headerLen+len(samples)*2))
	if err := binary.Write(buf, binary.LittleEndian, h); err != nil {
		return nil, fmt.Errorf("audio: write header: %w", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, samples); err != nil {
		return nil, fmt.Errorf("audio: write samples: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses a WAV blob back into 16-bit mono PCM samples and the
// sample rate it was recorded at.
func Decode(data []byte) ([]int16, int, error) {
	if len(data) < headerLen {
		return nil, 0, fmt.Errorf("audio: truncated WAV, %d bytes", len(data))
	}

	r := bytes.NewReader(data)
	var h header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, 0, fmt.Errorf("audio: read header: %w", err)
	}
	if string(h.ChunkID[:]) != "RIFF" || string(h.Format[:]) != "WAVE" {
		return nil, 0, fmt.Errorf("audio: not a RIFF/WAVE blob")
	}
	if h.AudioFormat != 1 || h.BitsPerSample != 16 || h.NumChannels != 1 {
		return nil, 0, fmt.Errorf("audio: unsupported format %d/%d-bit/%dch", h.AudioFormat, h.BitsPerSample, h.NumChannels)
	}
	if h.SampleRate == 0 {
		return nil, 0, fmt.Errorf("audio: zero sample rate")
	}

	n := int(h.Subchunk2Size) / 2
	if headerLen+n*2 > len(data) {
		return nil, 0, fmt.Errorf("audio: data chunk larger than blob")
	}
	samples := make([]int16, n)
	if err := binary.Read(r, binary.LittleEndian, &samples); err != nil {
		return nil, 0, fmt.Errorf("audio: read samples: %w", err)
	}
	return samples, int(h.SampleRate), nil
}

// Duration reports the playback length of a WAV blob.
func Duration(data []byte) (time.Duration, error) {
	samples, rate, err := Decode(data)
	if err != nil {
		return 0, err
	}
	return time.Duration(len(samples)) * time.Second / time.Duration(rate), nil
}
