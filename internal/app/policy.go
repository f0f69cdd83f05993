package app

import (
	"github.com/rs/zerolog/log"
)

// FailureAction decides what happens when a collaborator (persistence, push
// gateway) fails after the in-memory state has already changed.
type FailureAction int

const (
	// FailLog swallows the error after logging it; in-memory state wins.
	FailLog FailureAction = iota
	// FailSurface returns the error to the caller.
	FailSurface
	// FailRetry retries the call once, then logs.
	FailRetry
)

func ParseFailureAction(s string) FailureAction {
	switch s {
	case "surface":
		return FailSurface
	case "retry":
		return FailRetry
	default:
		return FailLog
	}
}

// Collaborators applies the configured failure policy to side-effect calls.
type Collaborators struct {
	Action FailureAction
}

// Run executes fn under the policy. It returns a non-nil error only under
// FailSurface; the in-memory mutation that preceded fn is never rolled back.
func (c Collaborators) Run(op string, fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}
	if c.Action == FailRetry {
		if err = fn(); err == nil {
			return nil
		}
	}
	if c.Action == FailSurface {
		return err
	}
	log.Error().Err(err).Str("module", "app.policy").Str("op", op).Msg("collaborator failure swallowed")
	return nil
}
