package init

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spiral-tools/spiral/arcutil"
	"github.com/spiral-tools/spiral/cmd/root"
)

var Flags struct {
	Path  string
	Force bool
}

var Command = &cobra.Command{
	GroupID: root.GroupArchive.ID,
	Use:     "init [out_path]",
	Short:   "Initializes " + arcutil.IgnoreFilename + " so a directory can be packed",
	Args:    cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			Flags.Path = "."
		} else {
			Flags.Path = args[0]
		}
		main()
	},
}

func init() {
	Command.Flags().BoolVarP(&Flags.Force, "force", "f", false, "overwrite files if they exist")
	root.Command.AddCommand(Command)
}

func main() {
	if err := os.Mkdir(Flags.Path, 0777); err != nil && !errors.Is(err, fs.ErrExist) {
		fmt.Fprintf(os.Stderr, "error: create output directory: %v\n", err)
		os.Exit(1)
	}

	writeFile := writeFileExcl
	if Flags.Force {
		writeFile = os.WriteFile
	}

	var ig arcutil.Ignore
	ig.AddDefault()

	if err := writeFile(filepath.Join(Flags.Path, arcutil.IgnoreFilename), []byte(ig.String()), 0666); err != nil {
		fmt.Fprintf(os.Stderr, "error: save %s: %v\n", arcutil.IgnoreFilename, err)
		os.Exit(1)
	}
}

func writeFileExcl(name string, data []byte, perm os.FileMode) error {
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC|os.O_EXCL, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(name)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return err
	}
	return nil
}
