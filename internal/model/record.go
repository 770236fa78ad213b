package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
)

// RawLossRecord is one loss case as read from the report, before any
// classification. Empty Country and ProductionFlagRef mean the value was absent.
type RawLossRecord struct {
	Country           string `json:"country,omitempty"`
	Category          string `json:"category"`
	Model             string `json:"model"`
	EvidenceURL       string `json:"evidence_url"`
	Description       string `json:"description"`
	NumericID         int    `json:"numeric_id"`
	ProductionFlagRef string `json:"production_flag_ref,omitempty"`
}

// LossRecord is a normalized loss case.
//
// (Country, Category, Model, ContentHash, CaseID) is unique across a
// normalized record set. CaseID separates distinct pieces of equipment that
// share a single evidence URL.
type LossRecord struct {
	RawLossRecord

	Status            StatusSet      `json:"status"`
	ProductionCountry *string        `json:"production_country_code"`
	EvidenceSource    EvidenceSource `json:"evidence_source"`
	ContentHash       Digest         `json:"content_hash"`
	CaseID            int            `json:"case_id"`
	DuplicateFlag     bool           `json:"duplicate_flag"`
	AsOfDate          time.Time      `json:"as_of_date"`
}

// FromRaw wraps raw records for normalization, preserving extraction order.
func FromRaw(raw []RawLossRecord) []LossRecord {
	out := make([]LossRecord, len(raw))
	for i, r := range raw {
		out[i] = LossRecord{RawLossRecord: r}
	}
	return out
}

// Digest is a SHA-256 content hash.
type Digest [sha256.Size]byte

// HashString returns the SHA-256 digest of the UTF-8 bytes of s.
func HashString(s string) Digest {
	return Digest(sha256.Sum256([]byte(s)))
}

// IsZero reports whether the digest was never computed.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// MarshalText encodes the digest as lowercase hex.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText decodes a lowercase hex digest.
func (d *Digest) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil {
		return eris.Wrap(err, "model: decode digest")
	}
	if len(b) != sha256.Size {
		return eris.Errorf("model: digest has %d bytes, want %d", len(b), sha256.Size)
	}
	copy(d[:], b)
	return nil
}

// EvidenceSource is the site a loss cites as evidence.
type EvidenceSource string

const (
	SourceUnknown EvidenceSource = "" // Host not in the source table
	SourcePostImg EvidenceSource = "postimg"
	SourceTwitter EvidenceSource = "twitter"
	SourceOther   EvidenceSource = "other"
)

// ParseEvidenceSource converts a configured name into an EvidenceSource.
func ParseEvidenceSource(s string) (EvidenceSource, error) {
	switch EvidenceSource(s) {
	case SourcePostImg, SourceTwitter, SourceOther:
		return EvidenceSource(s), nil
	}
	return SourceUnknown, eris.Errorf("model: unknown evidence source %q", s)
}

// MarshalJSON encodes SourceUnknown as null.
func (s EvidenceSource) MarshalJSON() ([]byte, error) {
	if s == SourceUnknown {
		return []byte("null"), nil
	}
	return json.Marshal(string(s))
}

// UnmarshalJSON accepts null for SourceUnknown.
func (s *EvidenceSource) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = SourceUnknown
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return eris.Wrap(err, "model: decode evidence source")
	}
	*s = EvidenceSource(raw)
	return nil
}

// CorrectionRule moves a model from a retired category to its replacement.
type CorrectionRule struct {
	OldCategory string `csv:"old_category" json:"old_category"`
	Model       string `csv:"model" json:"model"`
	NewCategory string `csv:"new_category" json:"new_category"`
}

// CountryFlagMap maps a flag image reference to an ISO 3166 alpha-3 code.
type CountryFlagMap map[string]string
