package verify

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/spf13/cobra"
	"github.com/spiral-tools/spiral"
	"github.com/spiral-tools/spiral/cmd/root"
	"golang.org/x/sync/errgroup"
)

var Flags struct {
	Archive string
	Verbose bool
}

var Command = &cobra.Command{
	Use:   "verify archive",
	Short: "Verifies the contents of an archive",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		Flags.Archive = args[0]
		main(root.From(cmd))
	},
}

func init() {
	Command.Flags().BoolVarP(&Flags.Verbose, "verbose", "v", false, "display entries as they are verified")
	root.ArgArchive(Command)
	root.Command.AddCommand(Command)
}

func main(app *root.App) {
	a, _, err := app.OpenArchive(Flags.Archive)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: open archive: %v\n", err)
		os.Exit(1)
	}
	es := a.Entries()

	var (
		mu      sync.Mutex
		failure int
	)
	var g errgroup.Group
	g.SetLimit(app.Threads())
	for _, e := range es {
		e := e
		g.Go(func() error {
			err := verify(e)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if Flags.Verbose {
					fmt.Printf("%s: ERROR\n", e.Name)
				}
				fmt.Fprintf(os.Stderr, "%s: ERROR - %v\n", e.Name, err)
				failure++
			} else if Flags.Verbose {
				fmt.Printf("%s: OK\n", e.Name)
			}
			return nil
		})
	}
	g.Wait()

	if Flags.Verbose {
		fmt.Printf("%d/%d entries valid\n", len(es)-failure, len(es))
	}
	if failure != 0 {
		os.Exit(1)
	}
}

// verify reads the whole entry, checking that the source provides exactly the
// declared size.
func verify(e spiral.Entry) error {
	r, err := e.Open()
	if err != nil {
		return err
	}
	defer r.Close()

	n, err := io.Copy(io.Discard, r)
	if err != nil {
		return err
	}
	if uint64(n) != e.Size {
		return fmt.Errorf("read %d bytes, expected %d", n, e.Size)
	}
	return nil
}
