package arm

import "fmt"

// CommunicationError wraps a transport-level failure during a register or
// memory access. It carries the operation that failed so callers can tell a
// broken hardware link from a configuration problem.
type CommunicationError struct {
	Op  string
	Err error
}

func (e *CommunicationError) Error() string {
	return fmt.Sprintf("arm: %s: %v", e.Op, e.Err)
}

func (e *CommunicationError) Unwrap() error { return e.Err }

// APEnumerationError reports that the live access-port scan could not be
// completed.
type APEnumerationError struct {
	Err error
}

func (e *APEnumerationError) Error() string {
	return fmt.Sprintf("arm: access port enumeration failed: %v", e.Err)
}

func (e *APEnumerationError) Unwrap() error { return e.Err }

// ParseError reports malformed contents while walking a component directory.
// Garbage tables are an expected failure mode of a disconnected or
// misconfigured target, so the walk reports them instead of panicking.
type ParseError struct {
	Address uint32
	Reason  string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("arm: component directory at 0x%08X: %s: %v", e.Address, e.Reason, e.Err)
	}
	return fmt.Sprintf("arm: component directory at 0x%08X: %s", e.Address, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// TraceSetupError reports a failure to wire the trace pipeline, either
// because a required component is absent from the directory or because a
// configuration register write failed.
type TraceSetupError struct {
	Missing string
	Err     error
}

func (e *TraceSetupError) Error() string {
	if e.Missing != "" {
		return fmt.Sprintf("arm: trace setup failed: no %s component found", e.Missing)
	}
	return fmt.Sprintf("arm: trace setup failed: %v", e.Err)
}

func (e *TraceSetupError) Unwrap() error { return e.Err }
