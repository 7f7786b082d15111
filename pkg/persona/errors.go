package persona

import "fmt"

// PersistenceError reports a durable read/write fault. The in-memory
// aggregate stays authoritative; callers may retry persisting later.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
	}
	return "persistence: " + e.Op
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ClassificationParseError reports that an external judgment response carried
// no well-formed structured block or was missing required fields.
type ClassificationParseError struct {
	Reason string
}

func (e *ClassificationParseError) Error() string {
	return "classification parse: " + e.Reason
}
