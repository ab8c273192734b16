// Package internal contains helpers shared by the command-line tools.
package internal

import (
	"fmt"
	"path"
	"strings"
)

// splitPath splits a slash or backslash separated path into its non-empty
// components.
func splitPath(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == '/' || r == '\\' })
}

// MatchGlobParents is like path.Match, but also matches if the pattern matches
// any parent directory of name. A leading slash anchors the pattern to the
// root; otherwise a single-component pattern may match any path component.
// Patterns with multiple components are always matched from the root.
func MatchGlobParents(pattern, name string) (bool, error) {
	pattern, anchor := strings.CutPrefix(strings.ReplaceAll(pattern, `\`, "/"), "/")
	pattern = strings.Join(splitPath(pattern), "/")

	if anchor && pattern == "" {
		return true, nil
	}

	parts := splitPath(name)
	for i := len(parts); i > 0; i-- {
		if m, err := path.Match(pattern, strings.Join(parts[:i], "/")); m || err != nil {
			return m, err
		}
		if !anchor {
			if m, err := path.Match(pattern, parts[i-1]); m || err != nil {
				return m, err
			}
		}
	}
	return false, nil
}

// FormatBytesSI formats the provided quantity with SI prefixes.
func FormatBytesSI(b int64) string {
	return formatBytes(b, 1000, "kMGTPE", "B")
}

// FormatBytesIEC formats the provided quantity with binary prefixes.
func FormatBytesIEC(b int64) string {
	return formatBytes(b, 1024, "KMGTPE", "iB")
}

func formatBytes(b, unit int64, prefixes, suffix string) string {
	sign := ""
	if b < 0 {
		sign, b = "-", -b
	}
	if b < unit {
		return fmt.Sprintf("%s%d B", sign, b)
	}
	div, exp := unit, 0
	for n := b / unit; n >= unit && exp < len(prefixes)-1; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%s%.1f %c%s", sign, float64(b)/float64(div), prefixes[exp], suffix)
}
