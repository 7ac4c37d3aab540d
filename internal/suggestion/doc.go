// Package suggestion generates strategic sales advice from conversation
// state. Each client utterance can produce at most one chat completion,
// grounded in retrieved toolkit techniques and rate limited by a cooldown
// that restarts only when a suggestion is actually delivered. The package
// also assembles and exports the end-of-session report.
package suggestion
