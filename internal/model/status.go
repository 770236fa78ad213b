package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Status is a state the equipment was reported in.
type Status string

const (
	StatusAbandoned Status = "abandoned"
	StatusCaptured  Status = "captured"
	StatusDamaged   Status = "damaged"
	StatusDestroyed Status = "destroyed"
	StatusScuttled  Status = "scuttled"
	StatusStripped  Status = "stripped"
	StatusSunk      Status = "sunk"
	StatusRaised    Status = "raised"
)

// AllStatuses lists every status in canonical order.
var AllStatuses = []Status{
	StatusAbandoned,
	StatusCaptured,
	StatusDamaged,
	StatusDestroyed,
	StatusScuttled,
	StatusStripped,
	StatusSunk,
	StatusRaised,
}

// ParseStatus converts a status name.
func ParseStatus(s string) (Status, error) {
	for _, st := range AllStatuses {
		if string(st) == strings.ToLower(strings.TrimSpace(s)) {
			return st, nil
		}
	}
	return "", eris.Errorf("model: unknown status %q", s)
}

// StatusSet is a set of statuses kept in canonical order.
type StatusSet []Status

// NewStatusSet builds a set from arbitrary input order.
func NewStatusSet(statuses ...Status) StatusSet {
	set := StatusSet{}
	for _, st := range AllStatuses {
		for _, in := range statuses {
			if in == st {
				set = append(set, st)
				break
			}
		}
	}
	return set
}

// Has reports whether st is in the set.
func (s StatusSet) Has(st Status) bool {
	for _, v := range s {
		if v == st {
			return true
		}
	}
	return false
}

func (s StatusSet) String() string {
	parts := make([]string, len(s))
	for i, st := range s {
		parts[i] = string(st)
	}
	return strings.Join(parts, ",")
}
