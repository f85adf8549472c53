package commands

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/panyam/pynarrow/checker"
	"github.com/panyam/pynarrow/loader"
)

type printer struct {
	w     io.Writer
	color bool

	errors, warnings int
}

func newPrinter(w io.Writer, useColor bool) *printer {
	return &printer{w: w, color: useColor}
}

func (p *printer) paint(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if p.color {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c
}

func (p *printer) severity(s loader.Severity) string {
	switch s {
	case loader.SeverityError:
		return p.paint(color.FgRed, color.Bold).Sprint(s.String())
	case loader.SeverityWarning:
		return p.paint(color.FgYellow).Sprint(s.String())
	}
	return p.paint(color.FgCyan).Sprint(s.String())
}

func (p *printer) diagnostic(path string, d *loader.Diagnostic) {
	switch d.Severity {
	case loader.SeverityError:
		p.errors++
	case loader.SeverityWarning:
		p.warnings++
	}
	fmt.Fprintf(p.w, "%s:%d:%d: %s: %s\n", p.paint(color.Bold).Sprint(path), d.Pos.Line, d.Pos.Col, p.severity(d.Severity), d.Msg)
}

func (p *printer) result(res *checker.Result, showInfo bool) {
	for _, d := range res.Diagnostics {
		if d.Severity == loader.SeverityInfo && !showInfo {
			continue
		}
		p.diagnostic(res.Path, d)
	}
	if res.Truncated {
		fmt.Fprintf(p.w, "%s: %s\n", res.Path, p.severity(loader.SeverityWarning)+": "+loader.ErrTooManyErrors.Error())
	}
}

func (p *printer) failure(err error) {
	p.errors++
	fmt.Fprintf(p.w, "%s: %v\n", p.severity(loader.SeverityError), err)
}

func (p *printer) summary(files int) {
	fmt.Fprintf(p.w, "%d %s, %d %s, %d %s\n",
		files, plural(files, "file"), p.errors, plural(p.errors, "error"), p.warnings, plural(p.warnings, "warning"))
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
