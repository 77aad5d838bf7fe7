package docerr

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"wrapped unreachable", fmt.Errorf("put doc-1: %w", ErrStoreUnreachable), KindUnreachable},
		{"not found", fmt.Errorf("get: %w", ErrNotFound), KindNotFound},
		{"permission", ErrPermissionDenied, KindPermission},
		{"validation", fmt.Errorf("rename: %w", ErrValidation), KindValidation},
		{"mail", ErrMailSend, KindMailSend},
		{"deadline", context.DeadlineExceeded, KindUnreachable},
		{"bad conn", fmt.Errorf("exec: %w", driver.ErrBadConn), KindUnreachable},
		{"net op", &net.OpError{Op: "dial", Err: errors.New("refused")}, KindUnreachable},
		{"plain", errors.New("boom"), KindUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err))
		})
	}
}

func TestTransientAndFatal(t *testing.T) {
	assert.True(t, IsTransient(ErrStoreUnreachable))
	assert.False(t, IsFatal(ErrStoreUnreachable))
	assert.True(t, IsFatal(ErrPermissionDenied))
	assert.True(t, IsFatal(ErrValidation))
	assert.False(t, IsTransient(ErrValidation))
	assert.Equal(t, "permission_denied", KindPermission.String())
}
