package get

import (
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"github.com/spiral-tools/spiral"
	"github.com/spiral-tools/spiral/cmd/root"
)

var Flags struct {
	Archive string
	Files   []string
}

var Command = &cobra.Command{
	Use:     "get archive file...",
	Aliases: []string{"cat"},
	Short:   "Reads files from an archive to stdout",
	Args:    cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		Flags.Archive = args[0]
		Flags.Files = args[1:]
		main(root.From(cmd))
	},
}

func init() {
	root.ArgArchive(Command)
	root.Command.AddCommand(Command)
}

func main(app *root.App) {
	a, _, err := app.OpenArchive(Flags.Archive)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: open archive: %v\n", err)
		os.Exit(1)
	}
	afs := spiral.NewFS(a)

	var failed int
	for _, name := range Flags.Files {
		if err := func() error {
			if !fs.ValidPath(name) {
				return fs.ErrInvalid
			}
			f, err := afs.Open(name)
			if err != nil {
				return err
			}
			defer f.Close()

			if fi, err := f.Stat(); err != nil {
				return err
			} else if fi.IsDir() {
				return fmt.Errorf("is a directory")
			}
			if _, err := io.Copy(os.Stdout, f); err != nil {
				return err
			}
			return nil
		}(); err != nil {
			fmt.Fprintf(os.Stderr, "error: read file %q: %v\n", name, err)
			failed++
		}
	}
	if failed != 0 {
		os.Exit(1)
	}
}
