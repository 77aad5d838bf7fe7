// Package docerr defines the error taxonomy shared by the document store,
// the sync engine and the notification pipeline.
package docerr

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"syscall"
)

var (
	// ErrStoreUnreachable means the store could not be reached or only a
	// cached copy was available. Callers treat it as transient.
	ErrStoreUnreachable = errors.New("store unreachable")
	ErrNotFound         = errors.New("document not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrValidation       = errors.New("validation failed")
	ErrMailSend         = errors.New("mail send failed")
)

// Kind is the coarse classification of an error.
type Kind int

const (
	KindUnknown Kind = iota
	KindUnreachable
	KindNotFound
	KindPermission
	KindValidation
	KindMailSend
)

func (k Kind) String() string {
	switch k {
	case KindUnreachable:
		return "store_unreachable"
	case KindNotFound:
		return "not_found"
	case KindPermission:
		return "permission_denied"
	case KindValidation:
		return "validation"
	case KindMailSend:
		return "mail_send"
	default:
		return "unknown"
	}
}

// Classify maps err onto a Kind. Sentinels wrapped anywhere in the chain win;
// otherwise network level failures count as unreachable.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrStoreUnreachable):
		return KindUnreachable
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrPermissionDenied):
		return KindPermission
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrMailSend):
		return KindMailSend
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, driver.ErrBadConn),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET):
		return KindUnreachable
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindUnreachable
	}
	return KindUnknown
}

// IsTransient reports whether err should be absorbed and retried by the next
// edit or flush cycle.
func IsTransient(err error) bool {
	return Classify(err) == KindUnreachable
}

// IsFatal reports whether err must be surfaced to the user.
func IsFatal(err error) bool {
	switch Classify(err) {
	case KindPermission, KindValidation, KindNotFound:
		return true
	}
	return false
}
