package reader

import (
	"errors"
	"fmt"
)

// ErrInvalidState reports an operation invoked outside the reader's valid
// lifecycle: double open, read before open, read after close.
var ErrInvalidState = errors.New("reader: invalid state")

// Cursor is the logical position in the source, attached to errors and to the
// post-exhaustion diagnostics.
type Cursor struct {
	Line   int   // 1-based line number
	Offset int64 // byte offset of the start of that line
}

func (c Cursor) String() string {
	return fmt.Sprintf("line %d (offset %d)", c.Line, c.Offset)
}

// SourceError reports a source that could not be opened or adopted.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("reader: source %s unavailable: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// MalformedRecordError reports a row or block that violates the schema: bad
// token count, failed numeric coercion, unexpected index ordering, or missing
// required quantities. Fatal only under the fail-fast recovery policy.
type MalformedRecordError struct {
	Cursor Cursor
	Line   string // offending line, empty for block-level faults
	Reason string
}

func (e *MalformedRecordError) Error() string {
	if e.Line == "" {
		return fmt.Sprintf("malformed record at %s: %s", e.Cursor, e.Reason)
	}
	return fmt.Sprintf("malformed record at %s: %s: %q", e.Cursor, e.Reason, e.Line)
}

// DuplicateIndexError reports a repeated index value under the "error"
// duplicate policy.
type DuplicateIndexError struct {
	Cursor Cursor
	Index  Index
}

func (e *DuplicateIndexError) Error() string {
	return fmt.Sprintf("duplicate index %s at %s", e.Index, e.Cursor)
}
