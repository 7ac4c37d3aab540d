// Package pipeline wires the processing stages behind the capture queue
// into a single worker: segment accumulation, transcription, conversation
// tracking, and suggestion generation with inline delivery. One goroutine
// runs the whole chain, so every stage downstream of capture sees events
// strictly in order. Stop waits a bounded time for the worker and reports,
// rather than kills, a worker stuck in an external call.
package pipeline
