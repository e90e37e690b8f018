package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the kiln ASCII banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	// Ember gradient, dark red to yellow.
	lines := []struct{ text, color string }{
		{"  _    _ _       ", "#b91c1c"},
		{" | | _(_) |_ __  ", "#dc2626"},
		{" | |/ / | | '_ \\ ", "#ea580c"},
		{" |   <| | | | | |", "#f59e0b"},
		{" |_|\\_\\_|_|_| |_|", "#facc15"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
