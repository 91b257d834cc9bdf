package tui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	messageOKColor      = lipgloss.AdaptiveColor{Light: "#009900", Dark: "#00FF00"}
	messageOKStyle      = lipgloss.NewStyle().Foreground(messageOKColor)
	messageTextColor    = lipgloss.AdaptiveColor{Light: "#000000", Dark: "#FFFFFF"}
	messageTextStyle    = lipgloss.NewStyle().Foreground(messageTextColor)
	messageWarningColor = lipgloss.AdaptiveColor{Light: "#990000", Dark: "#FF0000"}
	messageWarningStyle = lipgloss.NewStyle().Foreground(messageWarningColor)
	tableBorderColor    = lipgloss.AdaptiveColor{Light: "#999999", Dark: "#AAAAAA"}
	tableBorderStyle    = lipgloss.NewStyle().Foreground(tableBorderColor)
)

// Printer writes command results to out.
type Printer struct {
	out io.Writer
}

func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

func (p *Printer) message(style lipgloss.Style, mark string, msg string, args ...any) {
	fmt.Fprintln(p.out, render(style, mark)+render(messageTextStyle, fmt.Sprintf(msg, args...)))
}

func (p *Printer) Success(msg string, args ...any) {
	p.message(messageOKStyle, " ✓ ", msg, args...)
}

func (p *Printer) Warning(msg string, args ...any) {
	p.message(messageWarningStyle, " ✕ ", msg, args...)
}

func (p *Printer) Error(msg string, args ...any) {
	p.message(messageWarningStyle, " ⚠ ", msg, args...)
}

// Println writes text unstyled.
func (p *Printer) Println(text string) {
	fmt.Fprintln(p.out, text)
}

// Table writes rows under headers. Without a terminal the rows are tab separated.
func (p *Printer) Table(headers []string, rows [][]string) {
	if !HasTTY {
		for _, row := range rows {
			for i, col := range row {
				if i > 0 {
					fmt.Fprint(p.out, "\t")
				}
				fmt.Fprint(p.out, col)
			}
			fmt.Fprintln(p.out)
		}
		return
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(tableBorderStyle).
		Headers(headers...).
		Rows(rows...)
	fmt.Fprintln(p.out, t.String())
}
