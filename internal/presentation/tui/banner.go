// Package tui holds the CLI's terminal presentation helpers.
package tui

import (
	"fmt"

	"github.com/muesli/termenv"
)

// PrintBanner outputs the startup banner with the running version.
func PrintBanner(version string) {
	p := termenv.ColorProfile()
	s1 := termenv.String(`                  __ _   `).Foreground(p.Color("#818cf8"))
	s2 := termenv.String(` __      _____ / _| |_ `).Foreground(p.Color("#a78bfa"))
	s3 := termenv.String(` \ \ /\ / / _ \ |_| __|`).Foreground(p.Color("#c084fc"))
	s4 := termenv.String(`  \ V  V /  __/  _| |_ `).Foreground(p.Color("#e879f9"))
	s5 := termenv.String(`   \_/\_/ \___|_|  \__|`).Foreground(p.Color("#f472b6"))

	fmt.Println()
	fmt.Println(s1)
	fmt.Println(s2)
	fmt.Println(s3)
	fmt.Println(s4)
	fmt.Println(s5)
	fmt.Printf("   dataflow runtime v%s\n\n", version)
}

// Errorf renders a diagnostic line in red.
func Errorf(format string, args ...any) string {
	p := termenv.ColorProfile()
	return termenv.String(fmt.Sprintf(format, args...)).Foreground(p.Color("#f87171")).String()
}

// Warnf renders a diagnostic line in yellow.
func Warnf(format string, args ...any) string {
	p := termenv.ColorProfile()
	return termenv.String(fmt.Sprintf(format, args...)).Foreground(p.Color("#facc15")).String()
}

// Successf renders a diagnostic line in green.
func Successf(format string, args ...any) string {
	p := termenv.ColorProfile()
	return termenv.String(fmt.Sprintf(format, args...)).Foreground(p.Color("#4ade80")).String()
}
