package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// hashContent is the subset of an entry covered by ContentHash. Sequence is
// excluded because storage assigns it after hashing.
type hashContent struct {
	ID         string         `json:"id"`
	Action     Action         `json:"action"`
	ProposalID string         `json:"proposal_id"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Actor      string         `json:"actor"`
	Details    map[string]any `json:"details"`
	Timestamp  string         `json:"timestamp"`
}

// Hash computes the hex-encoded SHA-256 of the canonical JSON form of e.
// encoding/json sorts map keys, so equal entries hash equally.
func Hash(e *Entry) (string, error) {
	data, err := json.Marshal(hashContent{
		ID:         e.ID,
		Action:     e.Action,
		ProposalID: e.ProposalID,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Actor:      e.Actor,
		Details:    e.Details,
		Timestamp:  e.Timestamp.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Verify reports whether e.ContentHash matches the entry content.
//
// Details decoded from storage carry JSON number types, so Verify normalizes
// them through a JSON round trip before hashing.
func Verify(e *Entry) bool {
	if e.ContentHash == "" {
		return false
	}
	normalized := e.Clone()
	if e.Details != nil {
		raw, err := json.Marshal(e.Details)
		if err != nil {
			return false
		}
		normalized.Details = nil
		if err := json.Unmarshal(raw, &normalized.Details); err != nil {
			return false
		}
	}
	got, err := Hash(normalized)
	if err != nil {
		return false
	}
	return got == e.ContentHash
}
