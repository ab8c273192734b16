package list

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/opencontainers/go-digest"
	"github.com/spf13/cobra"
	"github.com/spiral-tools/spiral"
	"github.com/spiral-tools/spiral/arcutil"
	"github.com/spiral-tools/spiral/cmd/root"
	"github.com/spiral-tools/spiral/internal"
)

var Flags struct {
	Archive       string
	HumanReadable bool
	IEC           bool
	Long          bool
	Digest        bool
	JSON          bool
	Filter        arcutil.Filter
}

var Command = &cobra.Command{
	Use:     "list archive",
	Short:   "Lists the contents of an archive",
	Args:    cobra.ExactArgs(1),
	Aliases: []string{"ls"},
	Run: func(cmd *cobra.Command, args []string) {
		Flags.Archive = args[0]
		main(root.From(cmd))
	},
}

func init() {
	Command.Flags().Bool("help", false, "help for "+Command.Name()) // prevent the default short help flag from being set
	Command.Flags().BoolVarP(&Flags.HumanReadable, "human-readable", "h", false, "show sizes in human-readable form")
	Command.Flags().BoolVar(&Flags.IEC, "iec", false, "with --human-readable, use powers of 1024")
	Command.Flags().BoolVarP(&Flags.Long, "long", "l", false, "show entry offsets and sizes (adds the following columns to the beginning: offset[hex] size[bytes])")
	Command.Flags().BoolVarP(&Flags.Digest, "digest", "d", false, "also read the contents and compute sha256 digests (adds a column to the end)")
	Command.Flags().BoolVar(&Flags.JSON, "json", false, "output json")
	Flags.Filter = arcutil.NewFilter(Command.Flags())
	root.ArgArchive(Command)
	root.Command.AddCommand(Command)
}

type entry struct {
	Name   string        `json:"name"`
	Offset uint64        `json:"offset"`
	Size   uint64        `json:"size"`
	Digest digest.Digest `json:"digest,omitempty"`
	Error  string        `json:"error,omitempty"`
}

func main(app *root.App) {
	a, f, err := app.OpenArchive(Flags.Archive)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: open archive: %v\n", err)
		os.Exit(1)
	}

	var (
		es      []entry
		errs    int
		nameLen int
	)
	for _, e := range a.Entries() {
		if skip, err := Flags.Filter.Skip(e.Name); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		} else if skip {
			continue
		}
		x := entry{
			Name:   e.Name,
			Offset: e.Offset,
			Size:   e.Size,
		}
		if Flags.Digest {
			if d, err := entryDigest(e); err != nil {
				x.Error = err.Error()
				errs++
			} else {
				x.Digest = d
			}
		}
		nameLen = max(nameLen, min(len(e.Name), 64))
		es = append(es, x)
	}

	if Flags.JSON {
		buf, err := json.MarshalIndent(struct {
			Format  string  `json:"format"`
			Entries []entry `json:"entries"`
		}{f.Name(), es}, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: encode json: %v\n", err)
			os.Exit(1)
		}
		os.Stdout.Write(append(buf, '\n'))
	} else {
		for _, x := range es {
			if Flags.Long {
				if Flags.HumanReadable {
					fmt.Printf("%08X %9s  ", x.Offset, formatBytesAligned(int64(x.Size)))
				} else {
					fmt.Printf("%08X %9d  ", x.Offset, x.Size)
				}
			}
			if Flags.Digest {
				fmt.Printf("%*s", -nameLen, x.Name)
				if x.Error != "" {
					fmt.Printf(" ERR")
				} else {
					fmt.Printf(" %s", x.Digest.Encoded())
				}
			} else {
				fmt.Printf("%s", x.Name)
			}
			fmt.Printf("\n")
			if x.Error != "" {
				fmt.Fprintf(os.Stderr, "warning: entry %q: read: %s\n", x.Name, x.Error)
			}
		}
	}
	if errs != 0 {
		os.Exit(1)
	}
}

func entryDigest(e spiral.Entry) (digest.Digest, error) {
	rc, err := e.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	return digest.FromReader(rc)
}

func formatBytesAligned(b int64) string {
	var s string
	if Flags.IEC {
		s = internal.FormatBytesIEC(b)
	} else {
		s = internal.FormatBytesSI(b)
	}
	s, isB := strings.CutSuffix(s, " B")
	if isB {
		s += "  B"
	}
	return s
}
