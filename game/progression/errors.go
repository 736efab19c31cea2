package progression

import (
	"errors"
	"fmt"
)

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotPlayer        = errors.New("missing player role")
	ErrLevelTooLow      = errors.New("level too low")
	ErrSelfTarget       = errors.New("cannot target self")
	ErrOnCooldown       = errors.New("ability on cooldown")
	ErrAlreadyHeld      = errors.New("already held")
	ErrNotNeeded        = errors.New("ability not needed")
	ErrNoCharacter      = errors.New("no character")
	ErrSwapPending      = errors.New("swap already pending")
	ErrNotSwapTarget    = errors.New("not the swap target")
	ErrSwapUnknown      = errors.New("unknown or expired swap")
)

// UserError is a validation failure whose Message can be shown to the user
// as is. No state was changed.
type UserError struct {
	Err     error
	Message string
}

func (e *UserError) Error() string { return e.Err.Error() + ": " + e.Message }

func (e *UserError) Unwrap() error { return e.Err }

func userErr(err error, format string, args ...interface{}) *UserError {
	return &UserError{Err: err, Message: fmt.Sprintf(format, args...)}
}

// UserMessage returns the user-facing text of err and whether it is a
// validation error.
func UserMessage(err error) (string, bool) {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue.Message, true
	}
	return "", false
}
