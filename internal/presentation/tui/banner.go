package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner outputs the Leadflow ASCII banner.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{" _                _  __ _               ", "#34d399"},
		{"| |    ___  __ _ __| |/ _| | _____      __", "#2dd4bf"},
		{"| |   / _ \\/ _` / _` | |_| |/ _ \\ \\ /\\ / /", "#22d3ee"},
		{"| |__|  __/ (_| (_| |  _| | (_) \\ V  V / ", "#38bdf8"},
		{"|_____\\___|\\__,_\\__,_|_| |_|\\___/ \\_/\\_/  ", "#60a5fa"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
