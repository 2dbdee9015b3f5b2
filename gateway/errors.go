package gateway

import (
	"fmt"

	"github.com/pkg/errors"
)

// Vendor error codes the bridge reacts to.
const (
	CodeNoData      = 7
	CodeNotLoggedIn = 11
	CodeBadParams   = 5
)

// Error is a synchronous rejection of an outbound call.
type Error struct {
	Op   string
	Code int
	Text string
}

func (e *Error) Error() string {
	if e.Text != "" {
		return fmt.Sprintf("%s failed, code %d: %s", e.Op, e.Code, e.Text)
	}
	return fmt.Sprintf("%s failed, code %d", e.Op, e.Code)
}

// Reject builds a synchronous rejection error.
func Reject(op string, code int) error {
	return &Error{Op: op, Code: code}
}

// Code returns the vendor code carried by err, or -1.
func Code(err error) int {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Code
	}
	return -1
}

// IsNoData reports whether err is a rejection because the server has no data.
func IsNoData(err error) bool {
	return Code(err) == CodeNoData
}
