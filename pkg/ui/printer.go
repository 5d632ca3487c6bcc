package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Printer writes human-facing command output. Logs go through the logger;
// Printer is only for results and prompts.
type Printer struct {
	out    io.Writer
	quiet  bool
	styles styles
}

// NewPrinter creates a Printer on out. Colors are used only when out is a
// terminal and noColor is false. In quiet mode only errors and JSON are written.
func NewPrinter(out io.Writer, quiet, noColor bool) *Printer {
	r := lipgloss.NewRenderer(out)
	st := plainStyles(r)
	if !noColor && IsTerminal(out) {
		st = colorStyles(r)
	}
	return &Printer{out: out, quiet: quiet, styles: st}
}

// IsTerminal reports whether w is an interactive terminal
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (p *Printer) Title(msg string) {
	p.println(p.styles.title.Render(msg))
}

func (p *Printer) Success(msg string) {
	p.println(p.styles.success.Render(msg))
}

func (p *Printer) Warning(msg string) {
	p.println(p.styles.warning.Render(msg))
}

// Error is written even in quiet mode
func (p *Printer) Error(msg string, err error) {
	if err != nil {
		msg = msg + ": " + err.Error()
	}
	fmt.Fprintln(p.out, p.styles.failure.Render(msg))
}

// Info prints a single label/value line
func (p *Printer) Info(label, value string) {
	p.println(p.styles.label.Render(label) + p.styles.value.Render(value))
}

func (p *Printer) Dim(msg string) {
	p.println(p.styles.dim.Render(msg))
}

// Panel renders label/value pairs inside a bordered box under a title
func (p *Printer) Panel(title string, pairs [][2]string) {
	lines := make([]string, 0, len(pairs)+1)
	lines = append(lines, p.styles.title.Render(title))
	for _, kv := range pairs {
		lines = append(lines, p.styles.label.Render(kv[0])+p.styles.value.Render(kv[1]))
	}
	p.println(p.styles.panel.Render(strings.Join(lines, "\n")))
}

// JSON writes v as indented JSON regardless of quiet mode
func (p *Printer) JSON(v interface{}) error {
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p *Printer) println(s string) {
	if p.quiet {
		return
	}
	fmt.Fprintln(p.out, s)
}
