package unpack

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"github.com/spiral-tools/spiral"
	"github.com/spiral-tools/spiral/arcutil"
	"github.com/spiral-tools/spiral/cmd/root"
	"github.com/spiral-tools/spiral/internal"
	"golang.org/x/sync/errgroup"
)

var Flags struct {
	Archive     string
	Path        string
	EmptyIgnore bool
	Verbose     bool
	Filter      arcutil.Filter
}

var Command = &cobra.Command{
	Use:   "unpack archive out_path",
	Short: "Unpacks an archive for modification and repacking",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		Flags.Archive, Flags.Path = args[0], args[1]
		main(root.From(cmd))
	},
}

func init() {
	Command.Flags().BoolVar(&Flags.EmptyIgnore, "empty-ignore", false, "do not add default "+arcutil.IgnoreFilename+" entries")
	Command.Flags().BoolVarP(&Flags.Verbose, "verbose", "v", false, "display progress information")
	Flags.Filter = arcutil.NewFilter(Command.Flags())
	root.ArgArchive(Command)
	root.Command.AddCommand(Command)
}

func main(app *root.App) {
	if Flags.Verbose {
		fmt.Printf("unpacking %q to %q\n", Flags.Archive, Flags.Path)
	}

	a, f, err := app.OpenArchive(Flags.Archive)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: open archive: %v\n", err)
		os.Exit(1)
	}
	if Flags.Verbose {
		fmt.Printf("... opened %s archive\n", f.Name())
	}

	var es []spiral.Entry
	for _, e := range a.Entries() {
		if skip, err := Flags.Filter.Skip(e.Name); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		} else if skip {
			if Flags.Verbose {
				fmt.Printf("... %s (excluded)\n", e.Name)
			}
			continue
		}
		if !fs.ValidPath(e.Name) || e.Name == "." {
			fmt.Fprintf(os.Stderr, "error: entry %q has an unsafe name\n", e.Name)
			os.Exit(1)
		}
		es = append(es, e)
	}

	if Flags.Verbose {
		fmt.Printf("... generating %s\n", arcutil.IgnoreFilename)
	}
	var ig arcutil.Ignore
	if Flags.EmptyIgnore {
		ig.Add("/"+arcutil.IgnoreFilename, false)
	} else {
		ig.AddDefault()
	}
	for _, e := range es {
		if ig.Match(e.Name) {
			if strings.ContainsAny(e.Name, `*?[\`) {
				fmt.Fprintf(os.Stderr, "warning: entry %q matches an ignore rule and cannot be negated; it will be skipped when repacking\n", e.Name)
				continue
			}
			if err := ig.Add("/"+e.Name, true); err != nil {
				fmt.Fprintf(os.Stderr, "warning: entry %q matches an ignore rule: %v\n", e.Name, err)
			}
		}
	}

	if Flags.Verbose {
		fmt.Printf("... creating output directory\n")
	}
	if err := os.Mkdir(Flags.Path, 0777); err != nil && !errors.Is(err, fs.ErrExist) {
		fmt.Fprintf(os.Stderr, "error: create output directory: %v\n", err)
		os.Exit(1)
	}
	if dis, err := os.ReadDir(Flags.Path); err != nil {
		fmt.Fprintf(os.Stderr, "error: list output directory: %v\n", err)
		os.Exit(1)
	} else {
		for _, di := range dis {
			if !ig.Match(di.Name()) {
				fmt.Fprintf(os.Stderr, "error: output directory must not exist or be empty (other than ignored files), found %q\n", di.Name())
				os.Exit(1)
			}
		}
	}

	if Flags.Verbose {
		fmt.Printf("... saving %s\n", arcutil.IgnoreFilename)
	}
	if err := os.WriteFile(filepath.Join(Flags.Path, arcutil.IgnoreFilename), []byte(ig.String()), 0666); err != nil {
		fmt.Fprintf(os.Stderr, "error: write %s: %v\n", arcutil.IgnoreFilename, err)
		os.Exit(1)
	}

	if Flags.Verbose {
		fmt.Println()
	}

	var (
		mu   sync.Mutex
		done int
	)
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(app.Threads())
	for _, e := range es {
		e := e
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := extract(e, filepath.Join(Flags.Path, filepath.FromSlash(path.Clean(e.Name)))); err != nil {
				return fmt.Errorf("extract %q: %w", e.Name, err)
			}
			if Flags.Verbose {
				mu.Lock()
				done++
				fmt.Printf("[%4d/%4d] %s (%s)\n", done, len(es), e.Name, internal.FormatBytesSI(int64(e.Size)))
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if Flags.Verbose {
		fmt.Printf("\nunpacked %d entries\n", len(es))
	}
}

func extract(e spiral.Entry, name string) error {
	if err := os.MkdirAll(filepath.Dir(name), 0777); err != nil {
		return err
	}

	tf, err := os.CreateTemp(filepath.Dir(name), ".spiral*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tf.Name())
	defer tf.Close()

	r, err := e.Open()
	if err != nil {
		return err
	}
	defer r.Close()

	if _, err := io.Copy(tf, r); err != nil {
		return err
	}
	if err := tf.Close(); err != nil {
		return err
	}
	if err := os.Rename(tf.Name(), name); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
