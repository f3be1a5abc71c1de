package chain

import (
	"errors"
	"fmt"
)

// Kind classifies why an operation aborted. Values are stable; they are
// returned to API clients and written to the relayer dead-letter queue.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindInvalidSignature
	KindNonceReused
	KindExceedsCap
	KindInsufficientBalance
	KindInsufficientAllowance
	KindInsufficientPayment
	KindUnauthorized
	KindZeroAmount
	KindWrongPayment
	KindListingNotFound
	KindListingInactive
	KindDuplicateListing
	KindNotBoxOwner
	KindTokenNotFound
	KindInvalidArgument
	KindUnsupported
)

func (k Kind) String() string {
	switch k {
	case KindInvalidSignature:
		return "INVALID_SIGNATURE"
	case KindNonceReused:
		return "NONCE_REUSED"
	case KindExceedsCap:
		return "EXCEEDS_CAP"
	case KindInsufficientBalance:
		return "INSUFFICIENT_BALANCE"
	case KindInsufficientAllowance:
		return "INSUFFICIENT_ALLOWANCE"
	case KindInsufficientPayment:
		return "INSUFFICIENT_PAYMENT"
	case KindUnauthorized:
		return "UNAUTHORIZED"
	case KindZeroAmount:
		return "ZERO_AMOUNT"
	case KindWrongPayment:
		return "WRONG_PAYMENT"
	case KindListingNotFound:
		return "LISTING_NOT_FOUND"
	case KindListingInactive:
		return "LISTING_INACTIVE"
	case KindDuplicateListing:
		return "DUPLICATE_LISTING"
	case KindNotBoxOwner:
		return "NOT_BOX_OWNER"
	case KindTokenNotFound:
		return "TOKEN_NOT_FOUND"
	case KindInvalidArgument:
		return "INVALID_ARGUMENT"
	case KindUnsupported:
		return "UNSUPPORTED"
	default:
		return "UNKNOWN"
	}
}

// Error is a terminal failure of a single operation. Reason is the
// human-readable text shown to the caller.
type Error struct {
	Kind   Kind
	Reason string
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Reason
}

// Is matches any *Error of the same kind, so sentinels work with errors.Is
// regardless of the reason text.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Errorf builds an *Error of kind k.
func Errorf(k Kind, format string, args ...any) *Error {
	return &Error{Kind: k, Reason: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

var (
	ErrInvalidSignature      = &Error{Kind: KindInvalidSignature}
	ErrNonceReused           = &Error{Kind: KindNonceReused}
	ErrExceedsCap            = &Error{Kind: KindExceedsCap}
	ErrInsufficientBalance   = &Error{Kind: KindInsufficientBalance}
	ErrInsufficientAllowance = &Error{Kind: KindInsufficientAllowance}
	ErrInsufficientPayment   = &Error{Kind: KindInsufficientPayment}
	ErrUnauthorized          = &Error{Kind: KindUnauthorized}
	ErrZeroAmount            = &Error{Kind: KindZeroAmount}
	ErrWrongPayment          = &Error{Kind: KindWrongPayment}
	ErrListingNotFound       = &Error{Kind: KindListingNotFound}
	ErrListingInactive       = &Error{Kind: KindListingInactive}
	ErrDuplicateListing      = &Error{Kind: KindDuplicateListing}
	ErrNotBoxOwner           = &Error{Kind: KindNotBoxOwner}
	ErrTokenNotFound         = &Error{Kind: KindTokenNotFound}
	ErrInvalidArgument       = &Error{Kind: KindInvalidArgument}
	ErrUnsupported           = &Error{Kind: KindUnsupported}
)
