package share

import (
	"errors"
	"net"
	"os"
	"strings"
	"syscall"
)

// ErrNotFound marks a stat miss as permanent, distinct from a transient I/O
// failure.
var ErrNotFound = errors.New("share: not found")

// transientNTStatuses are the NT status substrings go-smb2 surfaces for
// conditions treated as retryable.
var transientNTStatuses = []string{
	"IO_TIMEOUT",
	"NETWORK_NAME_DELETED",
	"PIPE_BROKEN",
}

// permanentNTStatuses are the NT status substrings treated as final.
var permanentNTStatuses = []string{
	"ACCESS_DENIED",
}

// IsRetryable classifies err: timeouts, connection resets/closes, the
// listed transient NT statuses, and the listed OS errno values are
// retryable; everything else — including not-found errors, malformed-value
// errors, authentication errors, ACCESS_DENIED, and other final NT
// statuses — is permanent.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	for _, errno := range []syscall.Errno{
		syscall.ECONNRESET,
		syscall.EPIPE,
		syscall.ETIMEDOUT,
		syscall.EAGAIN,
		syscall.ENETUNREACH,
		syscall.EHOSTUNREACH,
	} {
		if errors.Is(err, errno) {
			return true
		}
	}

	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return IsRetryable(pathErr.Err)
	}

	msg := err.Error()
	for _, s := range permanentNTStatuses {
		if strings.Contains(msg, s) {
			return false
		}
	}
	for _, s := range transientNTStatuses {
		if strings.Contains(msg, s) {
			return true
		}
	}

	return false
}
