package route

import (
	"errors"
	"fmt"
	"strings"

	terrors "github.com/telepath-dev/telepath/internal/errors"
)

// Build error codes. Messages live in the internal error registry.
const (
	CodeInvalidPath    = "T001"
	CodeNoDescription  = "T002"
	CodeNoIdentity     = "T003"
	CodeNoSentinel     = "T004"
	CodeFrozen         = "T005"
	CodeSentinelTwice  = "T006"
	CodeParamNoRole    = "T101"
	CodeParamManyRoles = "T102"
	CodeNoController   = "T103"
	CodeRoleRepeated   = "T104"
	CodeNotStatic      = "T105"
	CodeBadSignature   = "T106"
	CodePathConflict   = "T201"
)

var (
	// ErrFrozen is returned by a Builder after Build has been called.
	ErrFrozen = errors.New("route: builder is frozen")

	// ErrArgumentType is returned when a dispatch value cannot be passed to
	// the parameter bound to its role.
	ErrArgumentType = errors.New("route: argument type mismatch")

	// ErrNoHandler is returned when dispatching to a node that has no runtime
	// handler, which happens for tables built from scanned source.
	ErrNoHandler = errors.New("route: node has no runtime handler")
)

// BuildError is a fatal problem with one declaration.
type BuildError struct {
	// Code is the registered error code (e.g., "T201").
	Code string

	// Path is the declared route path; empty for sentinels.
	Path string

	// Ref is the offending handler.
	Ref HandlerRef

	// Pos is the declaration's source position, if known.
	Pos Position

	// Param names the offending parameter for role errors.
	Param string

	// Peer is the accepted route the declaration conflicts with.
	Peer *Node

	// Detail adds error-specific information.
	Detail string

	// Err is the underlying cause, if any.
	Err error
}

// Message returns the registered short message for the error code.
func (e *BuildError) Message() string {
	if msg := terrors.Message(e.Code); msg != "" {
		return msg
	}
	return "invalid declaration"
}

func (e *BuildError) Error() string {
	var sb strings.Builder
	if e.Pos.IsValid() {
		sb.WriteString(e.Pos.String())
		sb.WriteString(": ")
	}
	sb.WriteString(e.Code)
	sb.WriteString(": ")
	sb.WriteString(e.Message())
	if subject := e.subject(); subject != "" {
		sb.WriteString(" [")
		sb.WriteString(subject)
		sb.WriteString("]")
	}
	if e.Param != "" {
		fmt.Fprintf(&sb, " parameter %q", e.Param)
	}
	if e.Peer != nil {
		sb.WriteString(" with ")
		sb.WriteString(e.Peer.describe())
	}
	if e.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Detail)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *BuildError) subject() string {
	switch {
	case e.Path != "" && !e.Ref.IsZero():
		return e.Path + " " + e.Ref.Key()
	case e.Path != "":
		return e.Path
	default:
		return e.Ref.Key()
	}
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// Diagnostic converts the error into a formatted tooling diagnostic.
func (e *BuildError) Diagnostic() *terrors.Diagnostic {
	d := terrors.New(e.Code)
	if subject := e.subject(); subject != "" {
		d.Message += ": " + subject
	}
	if e.Param != "" {
		d.Message += fmt.Sprintf(" (parameter %q)", e.Param)
	}
	if e.Pos.IsValid() {
		d.WithLocation(e.Pos.File, e.Pos.Line, e.Pos.Column)
	}
	if e.Peer != nil {
		d.WithRelated(e.Peer.describe())
	}
	if e.Detail != "" {
		d.WithDetail(e.Detail)
	}
	if e.Err != nil {
		d.Wrap(e.Err)
	}
	return d
}

// Diagnostics returns one diagnostic per declaration involved. A conflict
// yields a second diagnostic located at the accepted peer, naming the
// rejected declaration.
func (e *BuildError) Diagnostics() []*terrors.Diagnostic {
	diags := []*terrors.Diagnostic{e.Diagnostic()}
	if e.Peer == nil {
		return diags
	}
	d := terrors.New(e.Code)
	d.Message += ": " + e.Peer.path + " " + e.Peer.ref.Key()
	if pos := e.Peer.pos; pos.IsValid() {
		d.WithLocation(pos.File, pos.Line, pos.Column)
	}
	d.WithRelated(e.describe())
	return append(diags, d)
}

// describe renders the declaration the error is about, like Node.describe.
func (e *BuildError) describe() string {
	s := e.subject()
	if e.Pos.IsValid() {
		s += " at " + e.Pos.String()
	}
	return s
}

// at fills in the declaration context of an error raised by a helper.
func (e *BuildError) at(d *Declaration) *BuildError {
	if e.Path == "" {
		e.Path = d.Path
	}
	if e.Ref.IsZero() {
		e.Ref = d.Ref
	}
	if !e.Pos.IsValid() {
		e.Pos = d.Pos
	}
	return e
}

// MultiBuildError collects every declaration error of a failed build.
type MultiBuildError struct {
	Errors []*BuildError
}

func (e *MultiBuildError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "no route build errors"
	case 1:
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d route build errors:\n", len(e.Errors))
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (e *MultiBuildError) Unwrap() []error {
	errs := make([]error, len(e.Errors))
	for i, err := range e.Errors {
		errs[i] = err
	}
	return errs
}

// Diagnostics returns the diagnostics of every error in report order.
func (e *MultiBuildError) Diagnostics() []*terrors.Diagnostic {
	var diags []*terrors.Diagnostic
	for _, err := range e.Errors {
		diags = append(diags, err.Diagnostics()...)
	}
	return diags
}

// Codes returns the error codes in report order.
func (e *MultiBuildError) Codes() []string {
	codes := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		codes[i] = err.Code
	}
	return codes
}
