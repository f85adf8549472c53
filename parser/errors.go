package parser

import (
	"fmt"

	"github.com/panyam/pynarrow/decl"
)

type Location = decl.Location

// ParseError is a syntax error at a source position.
type ParseError struct {
	Loc Location
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Loc.Line, e.Loc.Col, e.Msg)
}
