package parser

import (
	"errors"
	"fmt"
)

var (
	// ErrHTMLParse matches every structural and value failure raised by this
	// package.
	ErrHTMLParse = errors.New("html parse error")

	// ErrNoPageLinks is wrapped by the pagination probe when a listing has no
	// page anchors at all.
	ErrNoPageLinks = errors.New("no pagination links")
)

// StructureError indicates an expected element or attribute is missing.
type StructureError struct {
	Selector string
	Err      error
}

func (e *StructureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("missing %s: %v", e.Selector, e.Err)
	}
	return fmt.Sprintf("missing %s", e.Selector)
}

func (e *StructureError) Unwrap() error {
	return e.Err
}

func (e *StructureError) Is(target error) bool {
	return target == ErrHTMLParse
}

// ValueError indicates text was present but did not convert to its target type.
type ValueError struct {
	Text string
	Err  error
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("invalid value %q: %v", e.Text, e.Err)
}

func (e *ValueError) Unwrap() error {
	return e.Err
}

func (e *ValueError) Is(target error) bool {
	return target == ErrHTMLParse
}
