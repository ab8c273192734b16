package identify

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/spiral-tools/spiral"
	"github.com/spiral-tools/spiral/cmd/root"
)

var Flags struct {
	Files []string
	JSON  bool
}

var Command = &cobra.Command{
	GroupID: root.GroupFormat.ID,
	Use:     "identify file...",
	Short:   "Identifies the format of files",
	Args:    cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		Flags.Files = args
		main(root.From(cmd))
	},
}

func init() {
	Command.Flags().BoolVar(&Flags.JSON, "json", false, "output json")
	root.Command.AddCommand(Command)
}

type result struct {
	File              string   `json:"file"`
	Format            string   `json:"format,omitempty"`
	Confidence        float64  `json:"confidence"`
	ByExtension       bool     `json:"by_extension"`
	ContentConfidence *float64 `json:"content_confidence,omitempty"`
	Error             string   `json:"error,omitempty"`
}

func main(app *root.App) {
	r := app.Registry()

	var (
		results []result
		failed  int
	)
	for _, name := range Flags.Files {
		res := result{File: name}
		id, ok := r.Identify(name, spiral.FileSource(name))
		if _, err := os.Stat(name); err != nil {
			res.Error = err.Error()
		} else if !ok {
			res.Error = "unknown format"
		} else {
			res.Format = id.Format.Name()
			res.Confidence = id.Confidence
			res.ByExtension = id.ByExtension
			if id.ByExtension {
				c := r.Confidence(id.Format, spiral.FileSource(name))
				res.ContentConfidence = &c
			}
		}
		if res.Error != "" {
			failed++
		}
		results = append(results, res)
	}

	if Flags.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			fmt.Fprintf(os.Stderr, "error: encode json: %v\n", err)
			os.Exit(1)
		}
	} else {
		for _, res := range results {
			switch {
			case res.Error != "":
				fmt.Fprintf(os.Stderr, "error: %s: %s\n", res.File, res.Error)
			case res.ByExtension:
				fmt.Printf("%s: %s (by extension, contents %.2f)\n", res.File, res.Format, *res.ContentConfidence)
			default:
				fmt.Printf("%s: %s (%.2f)\n", res.File, res.Format, res.Confidence)
			}
		}
	}
	if failed != 0 {
		os.Exit(1)
	}
}
