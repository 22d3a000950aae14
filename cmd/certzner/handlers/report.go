package handlers

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/imamik/certzner/internal/provisioning"
)

var (
	colorGreen  = lipgloss.Color("#22c55e")
	colorRed    = lipgloss.Color("#ef4444")
	colorYellow = lipgloss.Color("#eab308")
	colorBlue   = lipgloss.Color("#3b82f6")
	colorDim    = lipgloss.Color("#6b7280")
	colorWhite  = lipgloss.Color("#f9fafb")
)

// reportStyles holds the styles of one rendering. Plain output uses empty
// styles.
type reportStyles struct {
	title, section, dim, ok, fail, warn lipgloss.Style
}

func newReportStyles(color bool) reportStyles {
	if !color {
		plain := lipgloss.NewStyle()
		return reportStyles{plain, plain, plain, plain, plain, plain}
	}
	return reportStyles{
		title:   lipgloss.NewStyle().Bold(true).Foreground(colorWhite),
		section: lipgloss.NewStyle().Bold(true).Foreground(colorBlue),
		dim:     lipgloss.NewStyle().Foreground(colorDim),
		ok:      lipgloss.NewStyle().Foreground(colorGreen),
		fail:    lipgloss.NewStyle().Foreground(colorRed),
		warn:    lipgloss.NewStyle().Foreground(colorYellow),
	}
}

// isTerminal reports whether stdout is an interactive terminal.
var isTerminal = func() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// renderReport renders certificate outcomes and cleanup outcome as
// separate sections.
func renderReport(r *provisioning.Report, color bool) string {
	s := newReportStyles(color)
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(s.title.Render(fmt.Sprintf("  certzner run: %s", r.RunTag)))
	b.WriteString("\n")
	b.WriteString(s.dim.Render("  " + strings.Repeat("═", 30)))
	b.WriteString("\n\n")

	b.WriteString(s.section.Render("  Certificates"))
	b.WriteString("\n")
	b.WriteString(s.dim.Render("  " + strings.Repeat("─", 35)))
	b.WriteString("\n")
	if len(r.Domains) == 0 {
		b.WriteString(s.dim.Render("    none processed"))
		b.WriteString("\n")
	}
	for _, d := range r.Domains {
		b.WriteString(fmt.Sprintf("    %-40s %s", d.Domain, domainStatus(s, d)))
		b.WriteString("\n")
		if d.Err != nil {
			b.WriteString(s.dim.Render("      " + d.Err.Error()))
			b.WriteString("\n")
		}
	}
	b.WriteString(fmt.Sprintf("    published %d, failed %d, skipped %d, absent %d\n",
		r.Count(provisioning.DomainPublished), r.Count(provisioning.DomainFailed),
		r.Count(provisioning.DomainSkipped), r.Count(provisioning.DomainAbsent)))

	b.WriteString("\n")
	b.WriteString(s.section.Render("  Cleanup"))
	b.WriteString("\n")
	b.WriteString(s.dim.Render("  " + strings.Repeat("─", 35)))
	b.WriteString("\n")
	switch {
	case !r.TeardownRan:
		b.WriteString("    " + s.dim.Render("not needed (nothing was created)"))
	case r.TeardownErr != nil:
		b.WriteString("    " + s.fail.Render("incomplete: "+r.TeardownErr.Error()))
	default:
		b.WriteString("    " + s.ok.Render("all run resources removed"))
	}
	b.WriteString("\n")

	if r.Err != nil {
		b.WriteString("\n")
		b.WriteString("  " + s.fail.Render("Run error: "+r.Err.Error()))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(s.dim.Render(fmt.Sprintf("  Final stage %s after %s", r.Final, r.Duration.Round(time.Second))))
	b.WriteString("\n")
	return b.String()
}

func domainStatus(s reportStyles, d *provisioning.DomainOutcome) string {
	switch d.Status {
	case provisioning.DomainPublished:
		label := "published"
		if d.Reused {
			label = "published (reused)"
		}
		if d.StoreName != "" {
			label += " as " + d.StoreName
		}
		if !d.NotAfter.IsZero() {
			label += ", expires " + d.NotAfter.UTC().Format("2006-01-02")
		}
		return s.ok.Render(label)
	case provisioning.DomainFailed:
		return s.fail.Render("failed")
	case provisioning.DomainSkipped:
		return s.warn.Render("skipped")
	default:
		return s.dim.Render(string(d.Status))
	}
}
