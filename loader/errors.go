package loader

import (
	"errors"
	"fmt"
	"io"
)

var (
	ErrNotFound        = errors.New("source not found")
	ErrTooManyErrors   = errors.New("too many errors")
	ErrNoBindingTarget = errors.New("unsupported assignment target")
)

type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInfo
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	}
	return "error"
}

// Diagnostic is a message attached to a source position.
type Diagnostic struct {
	Pos      Location
	Severity Severity
	Msg      string
}

func Errorf(pos Location, format string, args ...any) *Diagnostic {
	return &Diagnostic{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func Infof(pos Location, format string, args ...any) *Diagnostic {
	return &Diagnostic{Pos: pos, Severity: SeverityInfo, Msg: fmt.Sprintf(format, args...)}
}

func (d *Diagnostic) Error() string {
	return fmt.Sprintf("%d:%d: %s: %s", d.Pos.Line, d.Pos.Col, d.Severity, d.Msg)
}

type ErrorCollector struct {
	// Errors for this file
	Errors []error

	// Max errors kept; later ones are dropped and Truncated is set.
	// 0 => no limit
	MaxErrors int
	Truncated bool
}

func (f *ErrorCollector) HasErrors() bool {
	for _, err := range f.Errors {
		var d *Diagnostic
		if !errors.As(err, &d) || d.Severity == SeverityError {
			return true
		}
	}
	return false
}

func (f *ErrorCollector) PrintErrors(w io.Writer) {
	for _, err := range f.Errors {
		fmt.Fprintln(w, err)
	}
	if f.Truncated {
		fmt.Fprintln(w, ErrTooManyErrors)
	}
}

func (f *ErrorCollector) AddErrors(errs ...error) {
	for _, err := range errs {
		if f.MaxErrors > 0 && len(f.Errors) >= f.MaxErrors {
			f.Truncated = true
			return
		}
		f.Errors = append(f.Errors, err)
	}
}

func (f *ErrorCollector) Errorf(pos Location, format string, args ...any) bool {
	f.AddErrors(Errorf(pos, format, args...))
	return false
}
