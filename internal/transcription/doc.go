// Package transcription implements the speech-to-text client built on the
// OpenAI audio API. Speech segments are encoded as WAV and submitted once
// each; transcripts too short to carry meaning are discarded.
package transcription
