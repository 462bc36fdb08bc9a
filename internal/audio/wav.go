// Package audio reads WAV stream headers and sample peaks, and probes other audio
// formats for duration and tags.
package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/listenupapp/readalong/internal/errors"
)

// Sentinel errors for stream inspection.
var (
	ErrNotWAV      = errors.New("not a RIFF/WAVE stream")
	ErrUnsupported = errors.New("unsupported audio encoding")
)

const formatPCM = 1

// WAVInfo describes a WAV stream's format and where its samples begin.
type WAVInfo struct {
	AudioFormat   uint16  `json:"audio_format"`
	SampleRate    uint32  `json:"sample_rate"`
	Channels      uint16  `json:"channels"`
	BitsPerSample uint16  `json:"bits_per_sample"`
	DataSize      uint32  `json:"data_size_bytes"`
	DataOffset    int64   `json:"data_offset"`
	Duration      float64 `json:"duration_seconds"`
}

// ByteRate returns the number of bytes per second of audio.
func (w *WAVInfo) ByteRate() int {
	return int(w.SampleRate) * int(w.Channels) * int(w.BitsPerSample) / 8
}

// OffsetFor returns the byte offset of the frame at t seconds.
func (w *WAVInfo) OffsetFor(t float64) int64 {
	align := int64(w.Channels) * int64(w.BitsPerSample) / 8
	if align == 0 {
		return w.DataOffset
	}
	frame := int64(t * float64(w.SampleRate))
	return w.DataOffset + frame*align
}

type chunkHeader struct {
	ID   [4]byte
	Size uint32
}

// ReadWAVInfo reads the RIFF header and walks chunks until the data chunk.
// On return r is positioned at the first sample.
func ReadWAVInfo(r io.Reader) (*WAVInfo, error) {
	var riff struct {
		ID     [4]byte
		Size   uint32
		Format [4]byte
	}
	if err := binary.Read(r, binary.LittleEndian, &riff); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotWAV, err)
	}
	if string(riff.ID[:]) != "RIFF" || string(riff.Format[:]) != "WAVE" {
		return nil, ErrNotWAV
	}

	info := &WAVInfo{}
	offset := int64(12)
	haveFmt := false

	for {
		var ch chunkHeader
		if err := binary.Read(r, binary.LittleEndian, &ch); err != nil {
			return nil, fmt.Errorf("%w: missing data chunk: %w", ErrNotWAV, err)
		}
		offset += 8

		switch string(ch.ID[:]) {
		case "fmt ":
			if ch.Size < 16 {
				return nil, fmt.Errorf("%w: short fmt chunk", ErrNotWAV)
			}
			var f struct {
				AudioFormat   uint16
				Channels      uint16
				SampleRate    uint32
				ByteRate      uint32
				BlockAlign    uint16
				BitsPerSample uint16
			}
			if err := binary.Read(r, binary.LittleEndian, &f); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrNotWAV, err)
			}
			if err := skip(r, int64(ch.Size)-16+int64(ch.Size%2)); err != nil {
				return nil, err
			}
			info.AudioFormat = f.AudioFormat
			info.Channels = f.Channels
			info.SampleRate = f.SampleRate
			info.BitsPerSample = f.BitsPerSample
			haveFmt = true

		case "data":
			if !haveFmt {
				return nil, fmt.Errorf("%w: data before fmt chunk", ErrNotWAV)
			}
			if info.SampleRate == 0 || info.Channels == 0 || info.BitsPerSample == 0 {
				return nil, fmt.Errorf("%w: sample rate %d, %d channels, %d bits",
					ErrUnsupported, info.SampleRate, info.Channels, info.BitsPerSample)
			}
			info.DataSize = ch.Size
			info.DataOffset = offset
			info.Duration = float64(ch.Size) / float64(info.ByteRate())
			return info, nil

		default:
			// LIST, fact and other metadata chunks; word aligned.
			if err := skip(r, int64(ch.Size)+int64(ch.Size%2)); err != nil {
				return nil, err
			}
		}
		offset += int64(ch.Size) + int64(ch.Size%2)
	}
}

// Duration returns the playing time of a complete WAV file held in memory.
func Duration(data []byte) (float64, error) {
	info, err := ReadWAVInfo(bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	return info.Duration, nil
}

// Peaks reads 16-bit PCM samples from r (positioned at the data chunk) and returns
// the normalized absolute peak of each of n equal buckets.
func Peaks(r io.Reader, info *WAVInfo, n int) ([]float64, error) {
	if info.AudioFormat != formatPCM || info.BitsPerSample != 16 {
		return nil, fmt.Errorf("%w: format %d, %d bits", ErrUnsupported, info.AudioFormat, info.BitsPerSample)
	}
	if n <= 0 {
		return nil, nil
	}

	total := int(info.DataSize) / 2
	peaks := make([]float64, n)
	if total == 0 {
		return peaks, nil
	}

	perBucket := max(total/n, 1)
	buf := make([]byte, 4096)
	sample := 0
	var carry []byte

	for sample < total {
		m, err := r.Read(buf)
		data := append(carry, buf[:m]...)
		carry = nil
		i := 0
		for ; i+1 < len(data) && sample < total; i += 2 {
			v := math.Abs(float64(int16(binary.LittleEndian.Uint16(data[i:]))) / math.MaxInt16)
			b := min(sample/perBucket, n-1)
			if v > peaks[b] {
				peaks[b] = min(v, 1)
			}
			sample++
		}
		if i < len(data) {
			carry = append(carry, data[i:]...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read samples: %w", err)
		}
	}
	return peaks, nil
}

// EncodeWAV encodes mono PCM-16 samples as a canonical 44-byte-header WAV file.
func EncodeWAV(samples []int16, sampleRate int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	const channels, bits = 1, 16
	dataSize := uint32(len(samples) * 2)

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(samples)*2))
	header := []any{
		[4]byte{'R', 'I', 'F', 'F'}, 36 + dataSize, [4]byte{'W', 'A', 'V', 'E'},
		[4]byte{'f', 'm', 't', ' '}, uint32(16),
		uint16(formatPCM), uint16(channels), uint32(sampleRate),
		uint32(sampleRate * channels * bits / 8), uint16(channels * bits / 8), uint16(bits),
		[4]byte{'d', 'a', 't', 'a'}, dataSize,
	}
	for _, v := range header {
		if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
			return nil, fmt.Errorf("failed to write WAV header: %w", err)
		}
	}
	if err := binary.Write(buf, binary.LittleEndian, samples); err != nil {
		return nil, fmt.Errorf("failed to write audio data: %w", err)
	}
	return buf.Bytes(), nil
}

func skip(r io.Reader, n int64) error {
	if n <= 0 {
		return nil
	}
	if s, ok := r.(io.Seeker); ok {
		if _, err := s.Seek(n, io.SeekCurrent); err == nil {
			return nil
		}
	}
	if _, err := io.CopyN(io.Discard, r, n); err != nil {
		return fmt.Errorf("%w: truncated chunk: %w", ErrNotWAV, err)
	}
	return nil
}
