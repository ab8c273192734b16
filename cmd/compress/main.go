package compress

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/opencontainers/go-digest"
	"github.com/spf13/cobra"
	"github.com/spiral-tools/spiral"
	"github.com/spiral-tools/spiral/cmd/root"
	"github.com/spiral-tools/spiral/compression"
	"github.com/spiral-tools/spiral/formats"
)

var Flags struct {
	Files      []string
	Format     string
	Stdout     bool
	Decompress bool
	Keep       bool
	Force      bool
	Verbose    bool
	Buffer     uint
}

var Command = &cobra.Command{
	GroupID: root.GroupFormat.ID,
	Use:     "compress [file...]",
	Short:   "Compresses or decompresses cmp, crilayla, or lzham files",
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if Flags.Decompress {
			return root.From(cmd).FormatNames(isCompression), cobra.ShellCompDirectiveFilterFileExt
		}
		return nil, cobra.ShellCompDirectiveDefault
	},
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			Flags.Files = []string{"-"}
		} else {
			Flags.Files = args
		}
		main(root.From(cmd))
	},
}

var DecompressCommand = &cobra.Command{
	GroupID: root.GroupFormat.ID,
	Use:     "decompress [file...]",
	Short:   "Decompresses cmp, crilayla, or lzham files (alias for compress -d)",
	Run: func(cmd *cobra.Command, args []string) {
		Flags.Decompress = true
		Command.Run(cmd, args)
	},
}

func init() {
	for _, c := range []*cobra.Command{Command, DecompressCommand} {
		c.Flags().StringVarP(&Flags.Format, "format", "F", "", "compression format (default is from the extension when decompressing, or cmp)")
		c.Flags().BoolVarP(&Flags.Stdout, "stdout", "c", false, "write to stdout, keep original file unchanged (always enabled if reading from stdin)")
		c.Flags().BoolVarP(&Flags.Keep, "keep", "k", false, "keep (don't delete) input files (always enabled if writing to stdout)")
		c.Flags().BoolVarP(&Flags.Force, "force", "f", false, "force overwrite of output file")
		c.Flags().BoolVarP(&Flags.Verbose, "verbose", "v", false, "verbose mode")
		c.Flags().UintVarP(&Flags.Buffer, "buffer", "b", compression.DefaultLZHAMBuffer, "lzham compression/decompression buffer size")
		c.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			return root.From(cmd).FormatNames(isCompression), cobra.ShellCompDirectiveNoFileComp
		})
	}
	Command.Flags().BoolVarP(&Flags.Decompress, "decompress", "d", false, "decompress")
	root.Command.AddCommand(Command, DecompressCommand)
}

func isCompression(f formats.Format) bool {
	_, ok := f.(*formats.CompressionFormat)
	return ok
}

// format selects the compression format for input.
func format(app *root.App, input string) (*formats.CompressionFormat, error) {
	r := app.Registry()

	var (
		f  formats.Format
		ok bool
	)
	switch {
	case Flags.Format != "":
		f, ok = r.Lookup(Flags.Format)
	case Flags.Decompress:
		if input == "-" {
			return nil, fmt.Errorf("cannot determine format of stdin (use --format)")
		}
		f, ok = r.ForExtension(spiral.Ext(input))
		if !ok || !isCompression(f) {
			return nil, fmt.Errorf("unknown extension (expected %s), ignoring", strings.Join(app.FormatNames(isCompression), ", "))
		}
	default:
		f, ok = formats.CMP, true
	}
	if !ok || !isCompression(f) {
		return nil, fmt.Errorf("unknown compression format %q", Flags.Format)
	}
	return f.(*formats.CompressionFormat), nil
}

func codec(f *formats.CompressionFormat) compression.Codec {
	if f == formats.LZHAM {
		return compression.LZHAM{Buffer: int(Flags.Buffer)}
	}
	return f.Codec()
}

func main(app *root.App) {
	var failed int
	for _, input := range Flags.Files {
		if err := func() error {
			f, err := format(app, input)
			if err != nil {
				return err
			}
			ext := "." + f.Extension()

			var output string
			if input == "-" || Flags.Stdout {
				output = "stdout"
			} else if Flags.Decompress {
				var ok bool
				if output, ok = strings.CutSuffix(input, ext); !ok || output == "" {
					return fmt.Errorf("unknown extension (expected %s), ignoring", ext)
				}
			} else {
				output = input + ext
			}

			var mode fs.FileMode
			if s, err := os.Stat(input); err == nil {
				mode = s.Mode()
			} else {
				mode = 0666
			}

			var buf []byte
			if input == "-" {
				buf, err = io.ReadAll(os.Stdin)
			} else {
				buf, err = os.ReadFile(input)
			}
			if err != nil {
				return err
			}
			if len(buf) == 0 {
				return fmt.Errorf("input is empty")
			}

			var out []byte
			if Flags.Decompress {
				out, err = codec(f).Decompress(bytes.NewReader(buf))
			} else {
				var r io.Reader
				if r, err = codec(f).Compress(buf); err == nil {
					out, err = io.ReadAll(r)
				}
			}
			if err != nil {
				return err
			}

			if input == "-" || Flags.Stdout {
				if _, err := os.Stdout.Write(out); err != nil {
					return err
				}
			} else {
				w, err := os.OpenFile(output, os.O_CREATE|os.O_TRUNC|os.O_WRONLY|os.O_EXCL, mode)
				if errors.Is(err, fs.ErrExist) {
					if !Flags.Force {
						fmt.Fprintf(os.Stderr, "warning: %s already exists; overwrite (y or n)? ", output)
						os.Stderr.Sync()

						var s string
						_, _ = fmt.Fscanln(os.Stdin, &s)

						if strings.TrimSpace(s) != "y" {
							fmt.Fprintf(os.Stderr, "\tnot overwriting\n")
							failed++
							return nil
						}
					}
					w, err = os.OpenFile(output, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
				}
				if err != nil {
					return err
				}
				defer w.Close()

				if _, err := w.Write(out); err != nil {
					return err
				}
				if err := w.Close(); err != nil {
					return err
				}
			}

			var action string
			if !(Flags.Keep || input == "-" || Flags.Stdout) {
				if err := os.Remove(input); err != nil && !errors.Is(err, fs.ErrNotExist) {
					return err
				}
				action = "replaced with"
			} else {
				action = "created"
			}

			if Flags.Verbose {
				fmt.Fprintf(os.Stderr, "%s: %s %5.1f%% %s -- %s %s\n", input, f.Name(), float64(len(out))/float64(len(buf))*100, digest.FromBytes(out), action, output)
			}
			return nil
		}(); err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "error: %s: %v\n", input, err)
		}
	}
	if failed != 0 {
		os.Exit(1)
	}
}
