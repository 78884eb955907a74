package kif

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedNotation   = errors.New("malformed notation")
	ErrUnsupportedNotation = errors.New("unsupported notation")
	ErrUnrecognizedGlyph   = errors.New("unrecognized glyph")
	ErrEmptySourceSquare   = errors.New("empty source square")
	ErrUndecodableText     = errors.New("failed to detect KIF text encoding")
)

// NotationError reports a move string the decoder could not turn into a Move.
type NotationError struct {
	Notation string
	// Token is the offending glyph when Err is ErrUnrecognizedGlyph.
	Token string
	Err   error
}

func (e *NotationError) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("%v %q in %q", e.Err, e.Token, e.Notation)
	}
	return fmt.Sprintf("%v: %q", e.Err, e.Notation)
}

func (e *NotationError) Unwrap() error {
	return e.Err
}
