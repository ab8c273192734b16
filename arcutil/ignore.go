// Package arcutil contains helpers for packing and unpacking archives from the
// command line.
package arcutil

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spiral-tools/spiral/internal"
)

// IgnoreFilename is the name of the ignore file. It should be at the root of
// the directory to be packed.
const IgnoreFilename = ".spiralignore"

// Ignore is a list of patterns to skip when packing a directory into an
// archive, in a similar fashion to gitignore.
//
// Each pattern is a case-sensitive glob, matched against the slash-separated
// path relative to the root and all of its parents (see
// internal.MatchGlobParents), optionally negated with a leading exclamation
// mark.
//
// Rules are checked in order. A matching rule tentatively excludes the file.
// Once excluded, only negated rules are checked, and the first matching one
// includes the file again and stops processing.
type Ignore struct {
	rules []ignoreRule
}

type ignoreRule struct {
	Glob   string
	Negate bool
}

func (r ignoreRule) String() string {
	if r.Negate {
		return "!" + r.Glob
	}
	return r.Glob
}

var defaultIgnore = []string{
	"/" + IgnoreFilename,
	".DS_Store",
	"._*",
	"Thumbs.db",
	"Desktop.ini",
	".directory",
	".git*",
	".vscode",
	".idea",
	"*.swp",
	"*.part",
	"*~",
}

// AddDefault adds rules for common editor and operating system files.
func (v *Ignore) AddDefault() {
	for _, g := range defaultIgnore {
		v.rules = append(v.rules, ignoreRule{Glob: g})
	}
}

// Add adds a rule.
func (v *Ignore) Add(glob string, negate bool) error {
	switch {
	case strings.HasPrefix(glob, "!"):
		return fmt.Errorf("glob %q starts with negation character", glob)
	case strings.Contains(glob, "#"):
		return fmt.Errorf("glob %q contains comment character", glob)
	case strings.ContainsAny(glob, "\n\r"):
		return fmt.Errorf("glob %q contains newlines or carriage returns", glob)
	case strings.TrimSpace(glob) != glob || glob == "":
		return fmt.Errorf("glob %q is empty or has leading or trailing whitespace", glob)
	}
	v.rules = append(v.rules, ignoreRule{Glob: glob, Negate: negate})
	return nil
}

// Match checks whether path should be skipped.
func (v Ignore) Match(path string) bool {
	var excluding bool
	for _, r := range v.rules {
		if r.Negate != excluding {
			continue
		}
		if m, _ := internal.MatchGlobParents(r.Glob, path); m {
			if r.Negate {
				return false
			}
			excluding = true
		}
	}
	return excluding
}

// String returns the rules in the format read by Parse.
func (v Ignore) String() string {
	var b strings.Builder
	b.WriteString("# glob patterns to skip when packing this directory\n")
	b.WriteString("# - a leading slash anchors the pattern to this directory\n")
	b.WriteString("# - a leading exclamation mark negates the pattern\n")
	b.WriteString("# - once a pattern excludes a file, only a later negated pattern includes it again\n")
	b.WriteString("\n")
	for _, r := range v.rules {
		b.WriteString(r.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// Parse parses an ignore file, replacing any existing rules.
func (v *Ignore) Parse(s string) error {
	var rules []ignoreRule
	sc := bufio.NewScanner(strings.NewReader(s))
	for sc.Scan() {
		line, _, _ := strings.Cut(sc.Text(), "#")
		if line = strings.TrimSpace(line); line == "" {
			continue
		}
		glob, negate := strings.CutPrefix(line, "!")
		if glob = strings.TrimSpace(glob); glob == "" {
			continue
		}
		rules = append(rules, ignoreRule{Glob: glob, Negate: negate})
	}
	if err := sc.Err(); err != nil {
		return err
	}
	v.rules = rules
	return nil
}

// ParseFile is like Parse, but reads from a file.
func (v *Ignore) ParseFile(name string) error {
	buf, err := os.ReadFile(name)
	if err != nil {
		return err
	}
	return v.Parse(string(buf))
}
