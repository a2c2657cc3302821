package tui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aretw0/leadflow/pkg/domain"
	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Renderer prints turn results for a human reading a terminal.
// Rich output renders bot messages as markdown through glamour and colors
// the option list; plain output writes the raw text.
type Renderer struct {
	w        io.Writer
	markdown func(string) (string, error)
	profile  termenv.Profile
}

// NewRenderer builds a renderer writing to w.
func NewRenderer(w io.Writer, rich bool) *Renderer {
	r := &Renderer{w: w, profile: termenv.Ascii}
	if !rich {
		return r
	}
	r.profile = termenv.ColorProfile()
	md, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err == nil {
		r.markdown = md.Render
	}
	return r
}

// Turn writes every message of res followed by the numbered options.
func (r *Renderer) Turn(res domain.TurnResult) {
	messages := res.Messages
	if len(messages) == 0 && res.Response != "" {
		messages = []string{res.Response}
	}
	for _, msg := range messages {
		r.message(msg)
	}
	for i, opt := range res.Choices {
		num := r.profile.String(fmt.Sprintf("  %d)", i+1)).Foreground(r.profile.Color("#38bdf8")).Bold()
		fmt.Fprintf(r.w, "%s %s %s\n", num, opt.Text, r.dim("["+opt.Value+"]"))
	}
	if res.Action != nil {
		r.System(fmt.Sprintf("ação pendente: %s (passo %s)", res.Action.Name, res.Action.StepID))
	}
	if res.Complete {
		r.System("conversa encerrada")
	}
}

// System writes an out-of-band note.
func (r *Renderer) System(msg string) {
	fmt.Fprintln(r.w, r.dim("· "+msg))
}

// Error writes an error line.
func (r *Renderer) Error(err error) {
	fmt.Fprintln(r.w, r.profile.String("erro: "+err.Error()).Foreground(r.profile.Color("#f87171")))
}

func (r *Renderer) message(msg string) {
	if r.markdown != nil {
		if out, err := r.markdown(msg); err == nil {
			fmt.Fprint(r.w, out)
			return
		}
	}
	fmt.Fprintln(r.w, strings.TrimRight(msg, "\n"))
}

func (r *Renderer) dim(s string) termenv.Style {
	return r.profile.String(s).Faint()
}
