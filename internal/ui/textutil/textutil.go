// Package textutil provides cell-width aware text helpers for terminal output.
package textutil

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// Ellipsis marks text that was cut to fit.
const Ellipsis = "…"

// Width returns the number of terminal columns s occupies.
func Width(s string) int {
	return runewidth.StringWidth(s)
}

// Truncate cuts s to at most maxWidth columns, ending with Ellipsis when
// anything was dropped.
func Truncate(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	return runewidth.Truncate(s, maxWidth, Ellipsis)
}

// OneLine keeps the first line of s and truncates it to maxWidth. A dropped
// remainder is marked with Ellipsis.
func OneLine(s string, maxWidth int) string {
	first, rest, multi := strings.Cut(strings.TrimRight(s, "\n"), "\n")
	if multi && rest != "" {
		if Width(first)+Width(Ellipsis) <= maxWidth {
			return first + Ellipsis
		}
	}
	return Truncate(first, maxWidth)
}
