// Package errortypes defines the error taxonomy of the template engine:
// compile errors carrying a source position, and runtime errors raised
// while rendering.
package errortypes

import "fmt"

// ErrFilePos extends the error interface with details on the file position
// where the error occurred.
type ErrFilePos interface {
	error
	File() string
	Line() int
	Col() int
}

// CompileError is a lexing or parsing failure.  It is raised when a
// template is constructed, never during a render.
type CompileError struct {
	err  error
	file string
	line int
	col  int
}

var _ ErrFilePos = (*CompileError)(nil)

// NewCompileErrorf creates a CompileError at the given source position.
func NewCompileErrorf(file string, line, col int, format string, args ...interface{}) error {
	return &CompileError{
		err:  fmt.Errorf(format, args...),
		file: file,
		line: line,
		col:  col,
	}
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("template %s:%d:%d: %s", e.file, e.line, e.col, e.err)
}

func (e *CompileError) Unwrap() error { return e.err }
func (e *CompileError) File() string  { return e.file }
func (e *CompileError) Line() int     { return e.line }
func (e *CompileError) Col() int      { return e.col }

// RuntimeError is a failure raised while rendering: division by zero, a
// missing modifier required by a pipe chain, or a fault translated from
// the executor.
type RuntimeError struct {
	msg string
}

// NewRuntimeErrorf creates a RuntimeError.
func NewRuntimeErrorf(format string, args ...interface{}) error {
	return &RuntimeError{msg: fmt.Sprintf(format, args...)}
}

func (e *RuntimeError) Error() string { return e.msg }

// IsCompileError identifies whether the root cause of the provided error
// is a CompileError.  Wrapped errors are unwrapped via the Cause function.
func IsCompileError(err error) bool {
	if err == nil {
		return false
	}
	_, ok := rootCause(err).(*CompileError)
	return ok
}

// IsRuntimeError identifies whether the root cause of the provided error
// is a RuntimeError.
func IsRuntimeError(err error) bool {
	if err == nil {
		return false
	}
	_, ok := rootCause(err).(*RuntimeError)
	return ok
}

func rootCause(err error) error {
	type causer interface {
		Cause() error
	}

	for {
		if e, ok := err.(causer); ok {
			err = e.Cause()
		} else {
			return err
		}
	}
}
