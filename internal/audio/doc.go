// Package audio handles sample assembly, chunk classification, speech
// enhancement, and segment accumulation. It slices captured sample blocks
// into fixed-duration chunks, normalizes and highpass-filters speech, and
// accumulates speech chunks into transcription-ready segments with WAV
// encoding for upload.
package audio
