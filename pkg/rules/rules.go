package rules

import (
	"fmt"

	"github.com/meshpair/meshpair-go/pkg/ident"
)

// IsEligible reports whether the device named candidate may be paired with
// the local node named local under the given allow list.
func IsEligible(candidate, local string, allow AllowList) bool {
	c, err := ident.ParseName(candidate)
	if err != nil {
		return false
	}
	l, err := ident.ParseName(local)
	if err != nil {
		return false
	}
	if candidate == local {
		return false
	}

	if c.Group != l.Group && l.Type != ident.TypeControlPanel {
		return false
	}
	return allow.Allows(c.Type)
}

// Evaluator binds the local node's name and allow list.
type Evaluator struct {
	local string
	allow AllowList
}

// NewEvaluator creates an evaluator for the given local name.
func NewEvaluator(local ident.Name, allow AllowList) (*Evaluator, error) {
	if _, err := ident.ParseName(local.String()); err != nil {
		return nil, fmt.Errorf("local name %q: %w", local, err)
	}
	return &Evaluator{local: local.String(), allow: allow}, nil
}

// Eligible reports whether candidate may be paired with the local node.
func (e *Evaluator) Eligible(candidate string) bool {
	return IsEligible(candidate, e.local, e.allow)
}

// LocalName returns the local node's name.
func (e *Evaluator) LocalName() string {
	return e.local
}

// AllowList returns the configured allow list.
func (e *Evaluator) AllowList() AllowList {
	return e.allow
}
