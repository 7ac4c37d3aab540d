// Package capture runs the producer half of the pipeline: an audio source
// delivers raw sample blocks on the capture goroutine, the stage slices
// them into fixed-duration chunks, classifies each by RMS amplitude, and
// pushes them onto a bounded queue without blocking. Sources replay WAV
// files or receive PCM frames over UDP.
package capture
