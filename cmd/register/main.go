package register

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spiral-tools/spiral/cmd/root"
)

var Flags struct {
	Paths  []string
	List   bool
	Remove bool
}

var Command = &cobra.Command{
	GroupID: root.GroupArchive.ID,
	Use:     "register [archive...]",
	Short:   "Registers archives so they can be referred to by name",
	Run: func(cmd *cobra.Command, args []string) {
		Flags.Paths = args
		main(root.From(cmd))
	},
}

func init() {
	Command.Flags().BoolVarP(&Flags.List, "list", "l", false, "list registered archives")
	Command.Flags().BoolVarP(&Flags.Remove, "remove", "r", false, "unregister the provided archives")
	Command.ValidArgsFunction = func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return root.From(cmd).ArchiveExtensions(), cobra.ShellCompDirectiveFilterFileExt
	}
	root.Command.AddCommand(Command)
}

func main(app *root.App) {
	c := app.MustConfig()

	if len(Flags.Paths) != 0 {
		paths := make([]string, 0, len(Flags.Paths))
		for _, p := range Flags.Paths {
			a, err := filepath.Abs(p)
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: resolve %q: %v\n", p, err)
				os.Exit(1)
			}
			if !Flags.Remove {
				if _, err := app.Identify(a); err != nil {
					fmt.Fprintf(os.Stderr, "error: identify %q: %v\n", p, err)
					os.Exit(1)
				}
			}
			paths = append(paths, a)
		}

		var n int
		if Flags.Remove {
			n = c.Unregister(paths...)
		} else {
			n = c.Register(paths...)
		}
		if err := c.Save(root.Flags.Config); err != nil {
			fmt.Fprintf(os.Stderr, "error: save config: %v\n", err)
			os.Exit(1)
		}
		if Flags.Remove {
			fmt.Fprintf(os.Stderr, "unregistered %d archives\n", n)
		} else {
			fmt.Fprintf(os.Stderr, "registered %d archives\n", n)
		}
	}

	if Flags.List || len(Flags.Paths) == 0 {
		for _, a := range c.Archives {
			fmt.Println(a)
		}
	}
}
