package root

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"github.com/spiral-tools/spiral"
	"github.com/spiral-tools/spiral/formats"
	"github.com/spiral-tools/spiral/internal/config"
	"github.com/spiral-tools/spiral/internal/logger"
	"github.com/spiral-tools/spiral/lin"
)

var Flags struct {
	Config   string
	LogLevel string
	Threads  int
	Game     lin.Game
}

var Command = &cobra.Command{
	Use:   "spiral",
	Short: "Manipulates Danganronpa game archives and scripts.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if n := From(cmd).Threads(); n > runtime.GOMAXPROCS(0) {
			runtime.GOMAXPROCS(n)
		}
	},
}

var GroupArchive = &cobra.Group{
	ID:    "archive",
	Title: "Archive commands:",
}

var GroupFormat = &cobra.Group{
	ID:    "format",
	Title: "Format commands:",
}

func init() {
	Command.AddGroup(GroupArchive, GroupFormat)
	Command.PersistentFlags().StringVar(&Flags.Config, "config", config.DefaultPath(), "configuration file")
	Command.PersistentFlags().StringVar(&Flags.LogLevel, "log-level", "", "log level (debug, info, warn, error; default from config, or info)")
	Command.PersistentFlags().IntVarP(&Flags.Threads, "threads", "j", 0, "number of entries to process in parallel (default from config, or cpu count)")
	Command.PersistentFlags().VarP(&Flags.Game, "game", "g", "game opcode table for scripts (dr1, dr2, udg; default from config, or dr1)")
}

// App holds the process-wide state derived from the flags. Each value is
// computed once, the first time it is used, so an App must only be used
// after the flags have been parsed.
type App struct {
	Config   func() (config.Config, error)
	Logger   func() logger.Logger
	Registry func() *formats.Registry
}

// NewApp creates an App reading the root flags.
func NewApp() *App {
	a := new(App)
	a.Config = sync.OnceValues(func() (config.Config, error) {
		return config.Load(Flags.Config)
	})
	a.Logger = sync.OnceValue(func() logger.Logger {
		level := Flags.LogLevel
		if level == "" {
			if c, err := a.Config(); err == nil {
				level = c.LogLevel
			}
		}
		lvl, err := logger.ParseLevel(level)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v, using info\n", err)
		}
		return logger.Text(os.Stderr, lvl)
	})
	a.Registry = sync.OnceValue(func() *formats.Registry {
		r := formats.Standard()
		r.Logger = a.Logger().WithGroup("formats")
		return r
	})
	return a
}

type appKey struct{}

// WithApp returns a copy of ctx carrying a.
func WithApp(ctx context.Context, a *App) context.Context {
	return context.WithValue(ctx, appKey{}, a)
}

// From returns the App carried by the command's context. If there is none
// (e.g., the command was executed without Execute), a new one is attached.
func From(cmd *cobra.Command) *App {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if a, ok := ctx.Value(appKey{}).(*App); ok {
		return a
	}
	a := NewApp()
	cmd.SetContext(WithApp(ctx, a))
	return a
}

// MustConfig returns the configuration, exiting if it could not be loaded.
func (a *App) MustConfig() config.Config {
	c, err := a.Config()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: load config: %v\n", err)
		os.Exit(1)
	}
	return c
}

// Threads returns the number of entries to process in parallel.
func (a *App) Threads() int {
	if Flags.Threads > 0 {
		return Flags.Threads
	}
	if c, err := a.Config(); err == nil && c.Threads != nil && *c.Threads > 0 {
		return *c.Threads
	}
	return runtime.NumCPU()
}

// Game returns the selected game.
func (a *App) Game() (lin.Game, error) {
	if Flags.Game != "" {
		return Flags.Game, nil
	}
	c, err := a.Config()
	if err != nil {
		return "", err
	}
	return c.Game()
}

// Params parses key=value conversion parameters, adding the selected game if
// not already set.
func (a *App) Params(kv []string) (formats.Params, error) {
	p, err := formats.ParseParams(kv...)
	if err != nil {
		return nil, err
	}
	g, err := a.Game()
	if err != nil {
		return nil, err
	}
	return p.With(formats.ParamLinGame, string(g)), nil
}

// Resolve resolves an archive argument. If name isn't an existing file, it is
// looked up by base name in the registered archives.
func (a *App) Resolve(name string) (string, error) {
	if _, err := os.Stat(name); err == nil || !errors.Is(err, fs.ErrNotExist) {
		return name, err
	}
	c, err := a.Config()
	if err != nil {
		return "", err
	}
	for _, x := range c.Archives {
		if filepath.Base(x) == name || strings.TrimSuffix(filepath.Base(x), filepath.Ext(x)) == name {
			return x, nil
		}
	}
	return "", fmt.Errorf("%q is not a file or a registered archive", name)
}

// Identify identifies the format of a file. A format chosen from the
// extension alone is double-checked against the contents, falling back to
// the content-based result if the contents disagree.
func (a *App) Identify(name string) (formats.Identification, error) {
	r := a.Registry()
	src := spiral.FileSource(name)

	id, ok := r.Identify(name, src)
	if ok && id.ByExtension {
		if c := r.Confidence(id.Format, src); c == 0 {
			a.Logger().Debug("contents do not match extension", "name", name, "format", id.Format.Name())
			if cid, cok := r.Identify("", src); cok {
				return cid, nil
			}
		}
	}
	if !ok {
		if _, err := os.Stat(name); err != nil {
			return id, err
		}
		return id, fmt.Errorf("unknown format")
	}
	return id, nil
}

// OpenArchive resolves, identifies and opens an archive.
func (a *App) OpenArchive(name string) (spiral.Archive, formats.Format, error) {
	path, err := a.Resolve(name)
	if err != nil {
		return nil, nil, err
	}
	id, err := a.Identify(path)
	if err != nil {
		return nil, nil, fmt.Errorf("identify %q: %w", path, err)
	}
	o, ok := id.Format.(formats.Opener)
	if !ok {
		return nil, nil, fmt.Errorf("%q is a %s file, not an archive", path, id.Format.Name())
	}
	arc, err := o.Open(spiral.FileSource(path))
	if err != nil {
		return nil, nil, err
	}
	a.Logger().Debug("opened archive", "path", path, "format", o.Name(), "entries", len(arc.Entries()))
	return arc, o, nil
}

// Target finds the output format from its name, or from the extension of the
// output file if name is empty.
func (a *App) Target(name, output string) (formats.Format, error) {
	r := a.Registry()
	if name != "" {
		if f, ok := r.Lookup(name); ok {
			return f, nil
		}
		return nil, fmt.Errorf("unknown format %q", name)
	}
	if f, ok := r.ForExtension(spiral.Ext(output)); ok {
		return f, nil
	}
	return nil, fmt.Errorf("cannot determine output format from %q (use --to)", output)
}

// FormatNames returns the names of the registered formats matching fn, for
// flag completion.
func (a *App) FormatNames(fn func(formats.Format) bool) []string {
	var ns []string
	for _, f := range a.Registry().Formats() {
		if fn == nil || fn(f) {
			ns = append(ns, f.Name())
		}
	}
	return ns
}

// ArchiveExtensions returns the extensions of formats which can be opened as
// archives.
func (a *App) ArchiveExtensions() []string {
	var es []string
	for _, f := range a.Registry().Formats() {
		if _, ok := f.(formats.Opener); ok {
			es = append(es, f.Extension())
		}
	}
	return es
}

// ArgArchive sets the group of cmd and completes its first argument with
// archive files.
func ArgArchive(cmd *cobra.Command) {
	cmd.GroupID = GroupArchive.ID
	cmd.ValidArgsFunction = func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) == 0 {
			return From(cmd).ArchiveExtensions(), cobra.ShellCompDirectiveFilterFileExt
		}
		return nil, cobra.ShellCompDirectiveDefault
	}
}

// WriteFile creates name through a temporary file in the same directory,
// renaming it into place only if fn succeeds.
func WriteFile(name string, fn func(f *os.File) error) error {
	tf, err := os.CreateTemp(filepath.Dir(name), ".spiral*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tf.Name())
	defer tf.Close()

	if err := fn(tf); err != nil {
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
