package arcutil

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spiral-tools/spiral/internal"
)

// Filter selects archive entries using --exclude and --include globs.
type Filter struct {
	Exclude *[]string
	Include *[]string
}

// NewFilter creates a Filter and registers its flags with set.
func NewFilter(set *pflag.FlagSet) Filter {
	return Filter{
		Exclude: set.StringSliceP("exclude", "e", nil, "exclude entries or directories matching the provided glob (anchor to the start with /)"),
		Include: set.StringSliceP("include", "E", nil, "negate --exclude for entries or directories matching the provided glob (if only includes are provided, everything else is excluded)"),
	}
}

// Skip determines whether to skip the named entry.
func (f Filter) Skip(name string) (bool, error) {
	var exclude, include []string
	if f.Exclude != nil {
		exclude = *f.Exclude
	}
	if f.Include != nil {
		include = *f.Include
	}

	excluded := len(exclude) == 0 && len(include) != 0
	for _, x := range exclude {
		if m, err := internal.MatchGlobParents(x, name); err != nil {
			return false, fmt.Errorf("process excludes: match %q against glob %q: %w", name, x, err)
		} else if m {
			excluded = true
			break
		}
	}
	if excluded {
		for _, x := range include {
			if m, err := internal.MatchGlobParents(x, name); err != nil {
				return false, fmt.Errorf("process includes: match %q against glob %q: %w", name, x, err)
			} else if m {
				excluded = false
				break
			}
		}
	}
	return excluded, nil
}
