// Package pmerrors defines the error taxonomy shared by every component:
// NotFound, ParseError, SizeViolation, Inconsistent, RpcFailure,
// TimeoutInState and ReprogramFailed from spec §7. Every constructor wraps
// with github.com/juju/errors so a cause survives Annotate/Trace calls at
// each component boundary, the way the original Python's chained
// RuntimeError(f"...") messages preserved context informally.
package pmerrors

import (
	"fmt"

	"github.com/juju/errors"
)

// NotFound builds a NotFound-flavored error from a format and its args.
// errors.IsNotFound(err) reports true for the result.
func NotFound(format string, args ...any) error {
	return errors.NotFoundf(format, args...)
}

// IsNotFound reports whether err (or its cause) is a NotFound error.
func IsNotFound(err error) bool {
	return errors.IsNotFound(err)
}

// ParseError names the offending token index in malformed SLOT_INFO,
// expected-inventory, or firmware-filename input.
type ParseErr struct {
	Input      string
	TokenIndex int
	Reason     string
}

func (e *ParseErr) Error() string {
	return fmt.Sprintf("parse error at token %d of %q: %s", e.TokenIndex, e.Input, e.Reason)
}

// NewParseError builds a ParseErr and wraps it so errors.Cause recovers it.
func NewParseError(input string, tokenIndex int, reason string) error {
	return errors.Trace(&ParseErr{Input: input, TokenIndex: tokenIndex, Reason: reason})
}

// SizeViolation reports a firmware file outside (0, 4194304] bytes.
type SizeViolationErr struct {
	Path string
	Size int64
}

func (e *SizeViolationErr) Error() string {
	return fmt.Sprintf("firmware file %q size %d outside (0, 4194304]", e.Path, e.Size)
}

func NewSizeViolation(path string, size int64) error {
	return errors.Trace(&SizeViolationErr{Path: path, Size: size})
}

// Inconsistent reports a firmware filename whose encoded fields disagree with
// the caller-supplied device/variant/var_revision.
type InconsistentErr struct {
	Field    string
	FromFile string
	FromCall string
}

func (e *InconsistentErr) Error() string {
	return fmt.Sprintf("filename %s %q does not match requested %q", e.Field, e.FromFile, e.FromCall)
}

func NewInconsistent(field, fromFile, fromCall string) error {
	return errors.Trace(&InconsistentErr{Field: field, FromFile: fromFile, FromCall: fromCall})
}

// RpcFailure wraps a transport or remote-error reply from the converter RPC
// session or the status feed.
func RpcFailure(cause error, format string, args ...any) error {
	return errors.Annotatef(cause, format, args...)
}

// TimeoutInState reports a state the remote FSM failed to reach in budget.
type TimeoutInStateErr struct {
	Target      string
	LastState   string
	BoardError  string
}

func (e *TimeoutInStateErr) Error() string {
	return fmt.Sprintf("timeout waiting for state %s (last state: %s, board error: %s)",
		e.Target, e.LastState, e.BoardError)
}

func NewTimeoutInState(target, lastState, boardError string) error {
	return errors.Trace(&TimeoutInStateErr{Target: target, LastState: lastState, BoardError: boardError})
}

// ReprogramFailed reports two errors within a single FSM walk (initial +
// recovery) or retry-envelope exhaustion.
type ReprogramFailedErr struct {
	Converter string
	Device    string
	Board     string
	Cause     error
}

func (e *ReprogramFailedErr) Error() string {
	msg := fmt.Sprintf("%s: reprogramming %s on board %s failed", e.Converter, e.Device, e.Board)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ReprogramFailedErr) Unwrap() error { return e.Cause }

func NewReprogramFailed(converter, device, board string, cause error) error {
	return errors.Trace(&ReprogramFailedErr{Converter: converter, Device: device, Board: board, Cause: cause})
}
