// Package event defines the immutable record model for session histories.
//
// Every state change in a session is captured as an Event: a state tag
// (RUNNING, FAILED, FINALIZED), an orchestration stage label, and an
// action-specific payload drawn from a closed sum type. Events are ordered
// by a per-session sequence number assigned on append; that order is the
// only ordering that matters.
//
// The package also owns the tamper-evidence primitives: canonical JSON
// serialization and the domain-separated chain hash. The orchestrator never
// computes hashes itself; the log implementation and the verifier both call
// ChainHash so any alteration of a stored event is detectable.
package event
