package toml

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	// ErrInvalidValueKind marks a malformed input graph: a nil node, an
	// unknown value kind, a payload that does not match its kind, or a key
	// that cannot be encoded.
	ErrInvalidValueKind = errors.New("invalid value kind")

	// ErrInvariant marks a table whose key order and entries disagree.
	ErrInvariant = errors.New("encoding invariant violated")

	// ErrCycle marks a table or array that contains itself.
	ErrCycle = errors.New("cyclic value graph")
)

// EncodeError reports where in the document encoding failed.
type EncodeError struct {
	Err    error
	Path   []string
	Detail string
}

func (e *EncodeError) Error() string {
	var b strings.Builder
	b.WriteString("toml: encode")

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(formatPath(e.Path))
	}

	b.WriteString(": ")
	b.WriteString(e.Err.Error())

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	return b.String()
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}

func encodeErr(err error, path []string, format string, args ...any) *EncodeError {
	return &EncodeError{
		Err:    err,
		Path:   slices.Clone(path),
		Detail: fmt.Sprintf(format, args...),
	}
}
