package protocol

import (
	"encoding/binary"
	"fmt"
)

// Frame wire format constants
const (
	// Magic marks the start of every audio frame ("SA")
	Magic   = 0x5341
	Version = 1

	// Frame structure sizes
	HeaderSize = 10 // 2 + 1 + 1 + 4 + 2 bytes

	// MaxSamplesPerFrame bounds payload allocation per datagram
	MaxSamplesPerFrame = 8192
)

// FrameHeader represents the 10-byte audio frame header
// Layout: [Magic:2][Version:1][Flags:1][Sequence:4][SampleCount:2]
type FrameHeader struct {
	Magic       uint16 // 0x5341
	Version     uint8  // Protocol version
	Flags       uint8  // Reserved, must be 0
	Sequence    uint32 // Frame sequence number
	SampleCount uint16 // Number of 16-bit samples in the payload
}

// Frame represents a parsed audio frame with decoded samples
type Frame struct {
	Header  *FrameHeader
	Samples []float32 // Normalized PCM samples
}

// ParseHeader parses the 10-byte frame header
func ParseHeader(data []byte) (*FrameHeader, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("header too short: expected %d bytes, got %d", HeaderSize, len(data))
	}

	header := &FrameHeader{
		Magic:       binary.BigEndian.Uint16(data[0:2]),
		Version:     data[2],
		Flags:       data[3],
		Sequence:    binary.BigEndian.Uint32(data[4:8]),
		SampleCount: binary.BigEndian.Uint16(data[8:10]),
	}

	return header, nil
}

// ValidateHeader validates the frame header fields
func ValidateHeader(header *FrameHeader) error {
	if header.Magic != Magic {
		return fmt.Errorf("invalid magic: 0x%04x (expected 0x%04x)", header.Magic, Magic)
	}

	if header.Version != Version {
		return fmt.Errorf("unsupported version: %d (expected %d)", header.Version, Version)
	}

	if header.SampleCount == 0 {
		return fmt.Errorf("empty frame: sample count is 0")
	}

	if header.SampleCount > MaxSamplesPerFrame {
		return fmt.Errorf("sample count too large: %d (maximum %d)", header.SampleCount, MaxSamplesPerFrame)
	}

	return nil
}

// ParseFrame parses a complete audio frame (header + PCM payload) and
// decodes the 16-bit little-endian samples to normalized float32.
func ParseFrame(data []byte) (*Frame, error) {
	header, err := ParseHeader(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}

	if err := ValidateHeader(header); err != nil {
		return nil, fmt.Errorf("invalid header: %w", err)
	}

	expectedLen := HeaderSize + int(header.SampleCount)*2
	if len(data) != expectedLen {
		return nil, fmt.Errorf("frame length mismatch: header says %d bytes, got %d bytes",
			expectedLen, len(data))
	}

	payload := data[HeaderSize:]
	samples := make([]float32, header.SampleCount)
	for i := range samples {
		v := int16(payload[i*2]) | int16(payload[i*2+1])<<8
		samples[i] = float32(v) / 32768.0
	}

	return &Frame{Header: header, Samples: samples}, nil
}

// EncodeFrame builds a wire frame from normalized samples. Used by stream
// senders and tests.
func EncodeFrame(sequence uint32, samples []float32) ([]byte, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("empty frame: sample count is 0")
	}

	if len(samples) > MaxSamplesPerFrame {
		return nil, fmt.Errorf("sample count too large: %d (maximum %d)", len(samples), MaxSamplesPerFrame)
	}

	data := make([]byte, HeaderSize+len(samples)*2)
	binary.BigEndian.PutUint16(data[0:2], Magic)
	data[2] = Version
	data[3] = 0
	binary.BigEndian.PutUint32(data[4:8], sequence)
	binary.BigEndian.PutUint16(data[8:10], uint16(len(samples)))

	payload := data[HeaderSize:]
	for i, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		v := int16(s * 32767.0)
		payload[i*2] = byte(v)
		payload[i*2+1] = byte(v >> 8)
	}

	return data, nil
}

// String returns a human-readable representation of the header
func (h *FrameHeader) String() string {
	return fmt.Sprintf("FrameHeader{Magic:0x%04x, Version:%d, Seq:%d, Samples:%d}",
		h.Magic, h.Version, h.Sequence, h.SampleCount)
}
