// Package vad provides speech/silence classification for captured audio
// chunks. Detectors operate on the RMS amplitude of a chunk: a stateless
// threshold detector and a hangover detector that bridges short pauses
// inside an utterance.
package vad
