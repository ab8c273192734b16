// Package cmd contains the spiral command line tool.
package cmd

import (
	"context"
	"os"

	"github.com/spiral-tools/spiral/cmd/root"

	_ "github.com/spiral-tools/spiral/cmd/compress"
	_ "github.com/spiral-tools/spiral/cmd/convert"
	_ "github.com/spiral-tools/spiral/cmd/get"
	_ "github.com/spiral-tools/spiral/cmd/identify"
	_ "github.com/spiral-tools/spiral/cmd/init"
	_ "github.com/spiral-tools/spiral/cmd/join"
	_ "github.com/spiral-tools/spiral/cmd/lin"
	_ "github.com/spiral-tools/spiral/cmd/list"
	_ "github.com/spiral-tools/spiral/cmd/register"
	_ "github.com/spiral-tools/spiral/cmd/unpack"
	_ "github.com/spiral-tools/spiral/cmd/verify"
	_ "github.com/spiral-tools/spiral/cmd/version"
)

func Execute() {
	if err := root.Command.ExecuteContext(root.WithApp(context.Background(), root.NewApp())); err != nil {
		os.Exit(1)
	}
}
