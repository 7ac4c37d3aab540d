// Package conversation tracks the state of a sales conversation from the
// client's transcribed utterances: funnel stage, sentiment, objections,
// buying signals, and a capped history. The analysis itself is a pure
// function over keyword tables; Tracker adds the locking the pipeline
// needs.
package conversation
