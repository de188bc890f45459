package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainEnvelope = "msync/envelope/v1"
	DomainLogEntry = "msync/log/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint computes the content-addressed identity of an envelope.
//
// Two envelopes with the same record id, table, action, seq and payload
// share a fingerprint regardless of payload key order or whitespace.
// SourceSite is excluded: the same change relayed by two sites is one change.
func Fingerprint(env Envelope) (string, error) {
	data, err := CanonicalizeJSON(env.Data)
	if err != nil {
		return "", fmt.Errorf("Fingerprint %s: %w", env.RecordID, err)
	}

	obj := map[string]any{
		"record_id":  env.RecordID,
		"table_name": env.TableName,
		"action":     string(env.Action),
		"seq":        env.Seq,
		"data":       RawCanonical(data),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("Fingerprint %s: failed to marshal: %w", env.RecordID, err)
	}
	return hashWithDomain(DomainEnvelope, canonical), nil
}

// Fingerprint is a convenience method for the package-level Fingerprint.
func (e Envelope) Fingerprint() (string, error) {
	return Fingerprint(e)
}

// LogEntryID derives the integration log id for one outcome of an envelope.
// Replaying an envelope to the same outcome produces the same id, so the
// log write is a no-op.
func LogEntryID(fingerprint, outcome string) string {
	return hashWithDomain(DomainLogEntry, []byte(fingerprint+"\x00"+outcome))
}
