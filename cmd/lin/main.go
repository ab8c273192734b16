package lin

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spiral-tools/spiral/cmd/root"
	"github.com/spiral-tools/spiral/lin"
)

var Flags struct {
	File string
}

var Command = &cobra.Command{
	GroupID: root.GroupFormat.ID,
	Use:     "lin file",
	Short:   "Disassembles a script",
	Args:    cobra.ExactArgs(1),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) == 0 {
			return []string{"lin"}, cobra.ShellCompDirectiveFilterFileExt
		}
		return nil, cobra.ShellCompDirectiveNoFileComp
	},
	Run: func(cmd *cobra.Command, args []string) {
		Flags.File = args[0]
		main(root.From(cmd))
	},
}

func init() {
	root.Command.AddCommand(Command)
}

func main(app *root.App) {
	g, err := app.Game()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	t, err := g.Table()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	b, err := os.ReadFile(Flags.File)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: read script: %v\n", err)
		os.Exit(1)
	}
	s, err := lin.Parse(t, b)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: parse script (%s): %v\n", g, err)
		os.Exit(1)
	}

	w := bufio.NewWriter(os.Stdout)
	if err := s.Disassemble(w); err != nil {
		fmt.Fprintf(os.Stderr, "error: disassemble script: %v\n", err)
		os.Exit(1)
	}
	if err := w.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "error: write output: %v\n", err)
		os.Exit(1)
	}
}
