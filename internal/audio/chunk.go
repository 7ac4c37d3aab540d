package audio

import (
	"math"
	"time"
)

// Chunk represents a fixed-duration slice of captured audio with its
// speech/silence classification. RMS is computed on the raw samples,
// before any enhancement is applied.
type Chunk struct {
	Seq        uint64
	Samples    []float32
	SampleRate int
	Timestamp  time.Time
	Duration   time.Duration
	IsSpeech   bool
	RMS        float64
}

// Segment is a concatenation of consecutive speech chunks, the unit
// handed to transcription.
type Segment struct {
	Samples    []float32
	SampleRate int
	Start      time.Time
	Duration   time.Duration
	Chunks     int
}

// Assembler accumulates driver-delivered sample blocks and slices them
// into fixed-size chunks. Block size and chunk size are decoupled: any
// remainder after slicing is kept for the next cycle.
type Assembler struct {
	sampleRate     int
	framesPerChunk int
	pending        []float32
	nextSeq        uint64
}

// NewAssembler creates an assembler producing chunks of framesPerChunk samples.
func NewAssembler(sampleRate, framesPerChunk int) *Assembler {
	return &Assembler{
		sampleRate:     sampleRate,
		framesPerChunk: framesPerChunk,
		pending:        make([]float32, 0, framesPerChunk*2),
	}
}

// Push appends a block of samples and returns every complete chunk that
// became available. Chunks are classified by the caller; Push only slices
// and computes the raw RMS amplitude.
func (a *Assembler) Push(block []float32, now time.Time) []*Chunk {
	a.pending = append(a.pending, block...)

	var chunks []*Chunk
	for len(a.pending) >= a.framesPerChunk {
		samples := make([]float32, a.framesPerChunk)
		copy(samples, a.pending[:a.framesPerChunk])
		a.pending = a.pending[a.framesPerChunk:]

		chunks = append(chunks, a.newChunk(samples, now))
	}

	return chunks
}

// Flush returns the remaining samples as one final, possibly shorter chunk.
// Returns nil when nothing is pending.
func (a *Assembler) Flush(now time.Time) *Chunk {
	if len(a.pending) == 0 {
		return nil
	}

	samples := make([]float32, len(a.pending))
	copy(samples, a.pending)
	a.pending = a.pending[:0]

	return a.newChunk(samples, now)
}

// Pending returns the number of buffered samples not yet sliced into a chunk.
func (a *Assembler) Pending() int {
	return len(a.pending)
}

func (a *Assembler) newChunk(samples []float32, now time.Time) *Chunk {
	seq := a.nextSeq
	a.nextSeq++

	return &Chunk{
		Seq:        seq,
		Samples:    samples,
		SampleRate: a.sampleRate,
		Timestamp:  now,
		Duration:   time.Duration(float64(len(samples)) / float64(a.sampleRate) * float64(time.Second)),
		RMS:        RMS(samples),
	}
}

// RMS computes the root mean square amplitude of a sample buffer.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}

	return math.Sqrt(sum / float64(len(samples)))
}

// BytesToSamples converts 16-bit little-endian PCM bytes to normalized
// float32 samples in [-1, 1).
func BytesToSamples(data []byte) []float32 {
	samples := make([]float32, len(data)/2)
	for i := range samples {
		v := int16(data[i*2]) | int16(data[i*2+1])<<8
		samples[i] = float32(v) / 32768.0
	}
	return samples
}

// SamplesToBytes converts normalized float32 samples to 16-bit
// little-endian PCM bytes, clipping out-of-range values.
func SamplesToBytes(samples []float32) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		v := int16(s * 32767.0)
		data[i*2] = byte(v)
		data[i*2+1] = byte(v >> 8)
	}
	return data
}
