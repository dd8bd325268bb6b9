package main

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"

	"github.com/askiada/go-shaderpipe/pkg/pipeline"
	"github.com/askiada/go-shaderpipe/pkg/pipeline/model"
)

// printer writes build results, coloured when the writer is a terminal.
type printer struct {
	out *termenv.Output
}

func newPrinter(w io.Writer) *printer {
	return &printer{out: termenv.NewOutput(w)}
}

func (p *printer) styled(text string, color termenv.Color) termenv.Style {
	return p.out.String(text).Foreground(color)
}

func (p *printer) item(pass string, view pipeline.ItemView) {
	label := fmt.Sprintf("%s/%s", pass, view.Name)

	switch view.Status.State {
	case model.Valid:
		fmt.Fprintf(p.out, "%s %s\n", p.styled("ok  ", termenv.ANSIGreen).Bold(), label)
	case model.Failed:
		fmt.Fprintf(p.out, "%s %s\n", p.styled("FAIL", termenv.ANSIRed).Bold(), label)
	default:
		fmt.Fprintf(p.out, "%s %s (%s)\n", p.styled("----", termenv.ANSIYellow), label, view.Status.State)
	}

	for _, d := range view.Status.Diagnostics {
		color := termenv.ANSIColor(termenv.ANSIBlue)
		switch d.Severity {
		case model.SeverityError:
			color = termenv.ANSIRed
		case model.SeverityWarning:
			color = termenv.ANSIYellow
		}
		path := view.Sources[d.Stage].Path
		if path == "" {
			path = d.Stage.String()
		}
		fmt.Fprintf(p.out, "    %s:%d:%d: %s: %s\n", path, d.Line, d.Column, p.styled(d.Severity.String(), color), d.Message)
	}
}

func (p *printer) summary(built, failed int) {
	if failed == 0 {
		fmt.Fprintln(p.out, p.styled(fmt.Sprintf("%d items built", built), termenv.ANSIGreen))
		return
	}
	fmt.Fprintln(p.out, p.styled(fmt.Sprintf("%d of %d items failed", failed, built+failed), termenv.ANSIRed).Bold())
}
