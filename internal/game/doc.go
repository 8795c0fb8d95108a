// Package game implements the deterministic transition engine.
//
// The engine is a pure function over (state, action): every operation
// returns a new state plus a Transition describing the event to record, or
// a no-op for geometrically illegal input. It never errors on
// legal-but-blocked input and performs no I/O; piece selection at spawn is
// the only nondeterminism and is injected through PieceSource.
//
// Replaying the same action sequence against the same spawn sequence yields
// an identical final state, which is what makes session histories
// independently verifiable.
package game
