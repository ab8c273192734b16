package convert

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spiral-tools/spiral"
	"github.com/spiral-tools/spiral/cmd/root"
	"github.com/spiral-tools/spiral/formats"
)

var Flags struct {
	Input  string
	Output string
	From   string
	To     string
	Params []string
}

var Command = &cobra.Command{
	GroupID: root.GroupFormat.ID,
	Use:     "convert in_path out_path",
	Short:   "Converts a file to another format",
	Args:    cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		Flags.Input, Flags.Output = args[0], args[1]
		main(root.From(cmd))
	},
}

func init() {
	Command.Flags().StringVarP(&Flags.From, "from", "f", "", "input format (default is to identify it)")
	Command.Flags().StringVarP(&Flags.To, "to", "t", "", "output format (default is from the output extension)")
	Command.Flags().StringArrayVarP(&Flags.Params, "param", "p", nil, "conversion parameter as key=value (e.g., spc:compress=false, cpk:align=2048, pak:align=16, lin:game=dr2)")
	Command.RegisterFlagCompletionFunc("from", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return root.From(cmd).FormatNames(nil), cobra.ShellCompDirectiveNoFileComp
	})
	Command.RegisterFlagCompletionFunc("to", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return root.From(cmd).FormatNames(nil), cobra.ShellCompDirectiveNoFileComp
	})
	root.Command.AddCommand(Command)
}

func main(app *root.App) {
	r := app.Registry()
	log := app.Logger()

	var from formats.Format
	if Flags.From != "" {
		var ok bool
		if from, ok = r.Lookup(Flags.From); !ok {
			fmt.Fprintf(os.Stderr, "error: unknown input format %q\n", Flags.From)
			os.Exit(1)
		}
	} else {
		id, err := app.Identify(Flags.Input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: identify %q: %v\n", Flags.Input, err)
			os.Exit(1)
		}
		from = id.Format
		log.Info("identified input", "format", from.Name(), "confidence", id.Confidence, "by_extension", id.ByExtension)
	}

	to, err := app.Target(Flags.To, Flags.Output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if !r.CanConvert(from, to) {
		fmt.Fprintf(os.Stderr, "error: cannot convert %s to %s\n", from.Name(), to.Name())
		os.Exit(1)
	}

	params, err := app.Params(Flags.Params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := root.WriteFile(Flags.Output, func(f *os.File) error {
		return r.Convert(from, to, spiral.FileSource(Flags.Input), f, params)
	}); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	log.Info("converted", "from", from.Name(), "to", to.Name(), "output", Flags.Output)
}
