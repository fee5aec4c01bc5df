package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/dgu-next-gen-cctv/pipe-label/internal/config"
)

const bannerWidth = 59

type arg struct {
	name  string
	value interface{}
}

// printBanner writes the boxed header and an echo of the effective
// arguments for a command.
func printBanner(w io.Writer, command string, args []arg) {
	title := fmt.Sprintf("PIPELABEL %s v%s", strings.ToUpper(command), config.Version)
	pad := bannerWidth - len(title)
	left := pad / 2

	fmt.Fprintln(w)
	fmt.Fprintln(w, "╔"+strings.Repeat("═", bannerWidth)+"╗")
	fmt.Fprintf(w, "║%s%s%s║\n", strings.Repeat(" ", left), title, strings.Repeat(" ", pad-left))
	fmt.Fprintln(w, "╠"+strings.Repeat("═", bannerWidth)+"╣")
	for _, a := range args {
		line := fmt.Sprintf("  %-12s %v", a.name+":", a.value)
		if len(line) > bannerWidth {
			line = line[:bannerWidth-3] + "..."
		}
		fmt.Fprintf(w, "║%-*s║\n", bannerWidth, line)
	}
	fmt.Fprintln(w, "╚"+strings.Repeat("═", bannerWidth)+"╝")
	fmt.Fprintln(w)
}

func dirArgs(cfg *config.Config) []arg {
	return []arg{
		{"data dir", cfg.DataDir},
		{"video dir", cfg.VideoDir},
		{"clip dir", cfg.ClipDir},
		{"output dir", cfg.OutputDir},
		{"label map", cfg.LabelMapPath},
		{"clip size", cfg.ClipSize},
		{"store", cfg.Store},
	}
}
