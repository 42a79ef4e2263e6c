package commission

import (
	"errors"
	"fmt"

	"stars-engine/internal/apperr"
)

var (
	ErrChatNotFound       = fmt.Errorf("chat_%w", apperr.ErrNotFound)
	ErrPartnerNotFound    = fmt.Errorf("partner_%w", apperr.ErrNotFound)
	ErrWithdrawalNotFound = fmt.Errorf("withdrawal_%w", apperr.ErrNotFound)
	ErrInvalidTransition  = errors.New("invalid_transition")
)

// TransitionError reports a withdrawal status change the workflow does not
// allow.
type TransitionError struct {
	ID   string
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s %s -> %s", ErrInvalidTransition, e.ID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

func isChatNotFound(err error) bool {
	return errors.Is(err, ErrChatNotFound)
}
