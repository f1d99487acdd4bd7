package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

type statusErr struct{ code int }

func (e statusErr) Error() string   { return fmt.Sprintf("status %d", e.code) }
func (e statusErr) Temporary() bool { return IsTransientStatus(e.code) }

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("invalid input"), false},
		{"cancelled", context.Canceled, false},
		{"wrapped cancelled", eris.Wrap(context.Canceled, "lookup"), false},
		{"temporary status", statusErr{503}, true},
		{"permanent status", statusErr{403}, false},
		{"wrapped temporary status", eris.Wrap(statusErr{429}, "metadata"), true},
		{"dns timeout", &net.DNSError{IsTimeout: true, Err: "timeout"}, true},
		{"connection reset", fmt.Errorf("read: %w", syscall.ECONNRESET), true},
		{"connection refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
		{"connection aborted", fmt.Errorf("read: %w", syscall.ECONNABORTED), true},
		{"refused inside op error", &net.OpError{Op: "dial", Net: "tcp", Err: &os.SyscallError{Syscall: "connect", Err: syscall.ECONNREFUSED}}, true},
		{"other errno", syscall.EINVAL, false},
		{"broken pipe text", errors.New("write: broken pipe"), true},
		{"tls text", errors.New("net/http: TLS handshake timeout"), true},
		{"no such host text", errors.New("dial tcp: lookup maps.example: no such host"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsTransientStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientStatus(code), "status %d", code)
	}
	for _, code := range []int{200, 204, 400, 401, 403, 404, 422} {
		assert.False(t, IsTransientStatus(code), "status %d", code)
	}
}
