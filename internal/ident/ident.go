// Package ident derives the short identifiers used in exported file names.
//
// An identifier depends only on what identifies the physical listing
// (listing id, or title plus image paths), never on grade or grading
// company, so correcting a label does not orphan previously exported files.
package ident

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/lehigh-university-libraries/cardset/internal/cards"
)

const (
	// Length is the default identifier length in hex characters
	Length = 8

	widenStep = 4
	maxLength = sha256.Size * 2
)

// Fingerprint returns the identity-bearing string hashed into an identifier
func Fingerprint(record cards.Record) string {
	if id := record.GetListingID(); id != "" {
		return id
	}
	parts := make([]string, 0, len(record.Images)+1)
	parts = append(parts, record.Title)
	parts = append(parts, record.Images...)
	return strings.Join(parts, "\x00")
}

// Generate returns the 8 hex character identifier for a record
func Generate(record cards.Record) string {
	return derive(Fingerprint(record), Length)
}

func derive(fingerprint string, n int) string {
	sum := sha256.Sum256([]byte(fingerprint))
	return hex.EncodeToString(sum[:])[:n]
}

// Registry hands out identifiers for a single run and widens an identifier
// when its short form is already held by a different fingerprint.
// Not safe for concurrent use.
type Registry struct {
	owners map[string]string
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{owners: make(map[string]string)}
}

// Assign returns the identifier for a record, unique within this registry
func (r *Registry) Assign(record cards.Record) string {
	return r.assign(Fingerprint(record))
}

func (r *Registry) assign(fingerprint string) string {
	for n := Length; n <= maxLength; n += widenStep {
		id := derive(fingerprint, n)
		owner, taken := r.owners[id]
		if !taken {
			r.owners[id] = fingerprint
			return id
		}
		if owner == fingerprint {
			return id
		}
	}
	// Distinct fingerprints never share a full SHA-256 digest in practice
	return derive(fingerprint, maxLength)
}
