package lifecycle

import (
	"errors"
	"fmt"

	"github.com/mmynk/roomledger/internal/storage"
)

// Kind classifies an engine error so callers can map it to a transport code.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindForbidden
	KindInvalidState
	KindValidation
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindInvalidState:
		return "invalid_state"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Error is a rejection of an engine operation. Message is stable and safe to
// show to end users.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

var (
	ErrRoomNotFound   = newError(KindNotFound, "room not found")
	ErrCycleNotFound  = newError(KindNotFound, "cycle not found")
	ErrMemberNotFound = newError(KindNotFound, "member not found")
	ErrUserNotFound   = newError(KindNotFound, "user not found")

	ErrNotAdmin    = newError(KindForbidden, "only the room admin can perform this action")
	ErrNotMember   = newError(KindForbidden, "you are not a member of this room")
	ErrNotAppAdmin = newError(KindForbidden, "only an application admin can perform this action")
	ErrRoomBanned  = newError(KindForbidden, "room is banned")

	ErrThresholdCrossed    = newError(KindInvalidState, "threshold crossed, close cycle first")
	ErrThresholdNotReached = newError(KindInvalidState, "threshold not yet reached")
	ErrNoActiveCycle       = newError(KindInvalidState, "no active cycle")
	ErrAlreadyPaid         = newError(KindInvalidState, "member already marked paid")
	ErrAlreadyInRoom       = newError(KindInvalidState, "user already belongs to a room")
	ErrCannotRemoveAdmin   = newError(KindInvalidState, "the room admin cannot be removed")

	ErrInvalidAmount    = newError(KindValidation, "amount must be greater than zero")
	ErrInvalidThreshold = newError(KindValidation, "threshold must be greater than zero")
	ErrMissingItemName  = newError(KindValidation, "item name is required")
	ErrMissingTitle     = newError(KindValidation, "room title is required")
	ErrInvalidTitle     = newError(KindValidation, "room title must not contain control characters")
	ErrMissingEmail     = newError(KindValidation, "email is required")

	ErrAmountPrecision    = newError(KindValidation, "amount must have at most two decimal places")
	ErrThresholdPrecision = newError(KindValidation, "threshold must have at most two decimal places")

	ErrTitleTaken = newError(KindConflict, "room title is already taken")
)

// KindOf returns the Kind of err, or KindUnknown for errors not raised by the engine.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// orNotFound replaces storage.ErrNotFound with the engine error target and
// wraps any other failure with context.
func orNotFound(err error, target *Error, op string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return target
	}
	return fmt.Errorf("%s: %w", op, err)
}
