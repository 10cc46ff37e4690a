package cli

import (
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Width(14)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

// printer renders command output, styled only when writing to a terminal.
type printer struct {
	cmd    *cobra.Command
	styled bool
}

func newPrinter(cmd *cobra.Command) *printer {
	return &printer{cmd: cmd, styled: isTerminal(cmd.OutOrStdout())}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (p *printer) render(style lipgloss.Style, s string) string {
	if !p.styled {
		return s
	}
	return style.Render(s)
}

func (p *printer) title(s string) {
	p.cmd.Println(p.render(titleStyle, s))
}

func (p *printer) field(label, value string) {
	if p.styled {
		p.cmd.Printf("  %s %s\n", labelStyle.Render(label), value)
		return
	}
	p.cmd.Printf("  %-14s %s\n", label, value)
}

func (p *printer) ok(s string) string   { return p.render(okStyle, s) }
func (p *printer) warn(s string) string { return p.render(warnStyle, s) }
func (p *printer) bad(s string) string  { return p.render(errStyle, s) }

// ago renders a past time relative to now, or "never".
func ago(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.Time(t)
}

func maskSecret(v string) string {
	if len(v) <= 8 {
		return "****"
	}
	return v[:4] + "..." + v[len(v)-4:]
}
