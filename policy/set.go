package policy

import (
	"errors"
	"fmt"
)

// ErrInvalidSet is returned by [Set.Validate] when a policy set is malformed.
var ErrInvalidSet = errors.New("policy: invalid policy set")

// Set is a named collection of policies. Names key the staleness columns
// computed by the inventory package. Map keys are unique by construction;
// Validate additionally rejects empty names and nil policies.
type Set map[string]Policy

// Validate checks that every name is non-empty and every policy is non-nil.
func (s Set) Validate() error {
	for name, p := range s {
		if name == "" {
			return fmt.Errorf("%w: empty policy name", ErrInvalidSet)
		}
		if p == nil {
			return fmt.Errorf("%w: nil policy %q", ErrInvalidSet, name)
		}
	}
	return nil
}
