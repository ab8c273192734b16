package join

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spiral-tools/spiral/arcutil"
	"github.com/spiral-tools/spiral/cmd/root"
	"github.com/spiral-tools/spiral/formats"
	"github.com/spiral-tools/spiral/internal"
)

var Flags struct {
	Path    string
	Output  string
	To      string
	Params  []string
	Verbose bool
	Filter  arcutil.Filter
}

var Command = &cobra.Command{
	GroupID: root.GroupArchive.ID,
	Use:     "join dir_path out_path",
	Aliases: []string{"pack"},
	Short:   "Packs a directory into an archive",
	Args:    cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		Flags.Path, Flags.Output = args[0], args[1]
		main(root.From(cmd))
	},
}

func init() {
	Command.Flags().StringVarP(&Flags.To, "to", "t", "", "archive format (default is from the output extension)")
	Command.Flags().StringArrayVarP(&Flags.Params, "param", "p", nil, "archive parameter as key=value (e.g., spc:compress=false, cpk:align=2048, pak:align=16)")
	Command.Flags().BoolVarP(&Flags.Verbose, "verbose", "v", false, "display files as they are added")
	Flags.Filter = arcutil.NewFilter(Command.Flags())
	Command.RegisterFlagCompletionFunc("to", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return root.From(cmd).FormatNames(func(f formats.Format) bool {
			_, ok := f.(formats.Creator)
			return ok
		}), cobra.ShellCompDirectiveNoFileComp
	})
	root.Command.AddCommand(Command)
}

func main(app *root.App) {
	f, err := app.Target(Flags.To, Flags.Output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	c, ok := f.(formats.Creator)
	if !ok {
		fmt.Fprintf(os.Stderr, "error: cannot create %s archives\n", f.Name())
		os.Exit(1)
	}

	params, err := app.Params(Flags.Params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	files, err := arcutil.Walk(Flags.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	var (
		keep  []arcutil.File
		total uint64
	)
	for _, x := range files {
		if skip, err := Flags.Filter.Skip(x.Name); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		} else if skip {
			if Flags.Verbose {
				fmt.Printf("... %s (excluded)\n", x.Name)
			}
			continue
		}
		if Flags.Verbose {
			fmt.Printf("[%4d/%4d] %s (%s)\n", len(keep)+1, len(files), x.Name, internal.FormatBytesSI(int64(x.Size)))
		}
		keep = append(keep, x)
		total += x.Size
	}

	w, err := c.Create(params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: create %s archive: %v\n", c.Name(), err)
		os.Exit(1)
	}
	arcutil.AddFiles(w, keep)

	if err := root.WriteFile(Flags.Output, func(f *os.File) error {
		if err := w.Compile(f); err != nil {
			return fmt.Errorf("compile %s archive: %w", c.Name(), err)
		}
		return nil
	}); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if Flags.Verbose {
		fmt.Printf("\npacked %d files (%s) into %q\n", len(keep), internal.FormatBytesSI(int64(total)), Flags.Output)
	}
}
