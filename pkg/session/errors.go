package session

import (
	"errors"
	"fmt"
)

// ErrSessionBusy is returned when an operation is attempted while another
// exclusive operation is in flight on the same session aggregate (including
// from a different clone of the handle). Conflicting access is a programmer
// error and fails fast instead of blocking.
var ErrSessionBusy = errors.New("session: another exclusive operation is in progress")

// ErrSessionClosed is returned for operations on a session whose hardware
// connection has been released.
var ErrSessionClosed = errors.New("session: session is closed")

// ErrChipAutodetectFailed is returned when construction with an automatic
// target selector cannot obtain any chip identity from the live hardware.
var ErrChipAutodetectFailed = errors.New("session: chip autodetection failed")

// CoreNotFoundError reports an attachment request for a core index the target
// does not declare.
type CoreNotFoundError struct {
	Index int
}

func (e *CoreNotFoundError) Error() string {
	return fmt.Sprintf("session: core %d not found", e.Index)
}
