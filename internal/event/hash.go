package event

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainEvent is the domain prefix for event chain hashes.
// Version suffix enables future algorithm migration.
const DomainEvent = "tetris/event/v1"

// ChainHash computes the tamper-evident hash for an event given the hash of
// its predecessor (empty string for the first event in a session).
//
// Format: SHA256(domain + 0x00 + prevHash + 0x00 + canonical body)
// The null separators prevent boundary ambiguity between components.
//
// The body covers tenant, session, seq, state, stage, and the payload
// fields; RecordedAt is deliberately excluded so replay verification is
// independent of wall time.
func ChainHash(prevHash string, e Event) (string, error) {
	if e.Payload == nil {
		return "", fmt.Errorf("chain hash: event seq %d has nil payload", e.Seq)
	}

	body := map[string]any{
		"tenant":  e.Tenant,
		"session": e.Session,
		"seq":     e.Seq,
		"state":   string(e.State),
		"stage":   string(e.Stage),
		"payload": e.Payload.canonical(),
	}

	canonical, err := marshalCanonical(body)
	if err != nil {
		return "", fmt.Errorf("chain hash: marshal event seq %d: %w", e.Seq, err)
	}

	h := sha256.New()
	h.Write([]byte(DomainEvent))
	h.Write([]byte{0x00})
	h.Write([]byte(prevHash))
	h.Write([]byte{0x00})
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}
