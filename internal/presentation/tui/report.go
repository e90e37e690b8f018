package tui

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/aretw0/kiln/internal/discovery"
	"github.com/muesli/termenv"
)

// StatusColors maps discovery outcomes to terminal colors.
var StatusColors = map[discovery.Status]string{
	discovery.StatusSelected:   "#22c55e",
	discovery.StatusSuperseded: "#eab308",
	discovery.StatusRejected:   "#ef4444",
}

// PrintSurvey writes one colored line per candidate package.
func PrintSurvey(w io.Writer, cands []discovery.Candidate) {
	out := termenv.NewOutput(w)
	if len(cands) == 0 {
		fmt.Fprintln(w, out.String("no extension packages found").Faint())
		return
	}
	for _, c := range cands {
		status := out.String(fmt.Sprintf("%-10s", c.Status)).Foreground(out.Color(StatusColors[c.Status])).Bold()
		name := c.Descriptor.Name
		if name == "" {
			name = "?"
		}
		line := fmt.Sprintf("%s %s %s  %s", status, name, c.Descriptor.Version, filepath.Base(c.Path))
		if c.Reason != "" {
			line += "  " + out.String(c.Reason).Faint().String()
		}
		fmt.Fprintln(w, line)
	}
}

// SurveyMarkdown renders the candidates as a markdown table.
func SurveyMarkdown(cands []discovery.Candidate) string {
	var sb strings.Builder
	sb.WriteString("# Extensions\n\n")
	if len(cands) == 0 {
		sb.WriteString("_No extension packages found._\n")
		return sb.String()
	}
	sb.WriteString("| Status | Name | Version | Entrypoint | Package | Notes |\n")
	sb.WriteString("|---|---|---|---|---|---|\n")
	for _, c := range cands {
		fmt.Fprintf(&sb, "| %s | %s | %s | `%s` | %s | %s |\n",
			c.Status, cell(c.Descriptor.Name), cell(c.Descriptor.Version),
			c.Descriptor.Entrypoint, filepath.Base(c.Path), cell(c.Reason))
	}
	return sb.String()
}

func cell(s string) string {
	if s == "" {
		return "-"
	}
	return strings.ReplaceAll(s, "|", "\\|")
}
