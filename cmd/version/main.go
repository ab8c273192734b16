package version

import (
	"fmt"
	"runtime/debug"
	"strconv"

	"github.com/pg9182/tf2lzham"
	"github.com/spf13/cobra"
	"github.com/spiral-tools/spiral/cmd/root"
)

var Command = &cobra.Command{
	Use:   "version",
	Short: "Print the current version",
	Run: func(cmd *cobra.Command, args []string) {
		main()
	},
}

func init() {
	root.Command.AddCommand(Command)
}

func main() {
	var vcs struct {
		revision string
		modified bool
	}
	var dep struct {
		tf2lzham string
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				vcs.revision = s.Value
			case "vcs.modified":
				vcs.modified, _ = strconv.ParseBool(s.Value)
			}
		}
		for _, d := range bi.Deps {
			if d.Path != "github.com/pg9182/tf2lzham" {
				continue
			}
			if d.Replace != nil {
				dep.tf2lzham = d.Replace.Path
				if d.Version != "(devel)" {
					dep.tf2lzham += " " + d.Replace.Version
				}
			} else if d.Version != "(devel)" {
				dep.tf2lzham = d.Version
			}
		}
	}

	version := "spiral "
	if len(vcs.revision) >= 7 {
		version += vcs.revision[:7]
	} else {
		version += "unknown"
	}
	if vcs.modified {
		version += " (modified)"
	}
	fmt.Println(version)

	version = "tf2lzham "
	if dep.tf2lzham != "" {
		version += dep.tf2lzham
	} else {
		version += "unknown"
	}
	if tf2lzham.WebAssembly {
		version += " (wasm)"
	} else {
		version += " (native)"
	}
	fmt.Println(version)
}
