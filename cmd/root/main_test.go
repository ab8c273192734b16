package root

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spiral-tools/spiral/formats"
	"github.com/spiral-tools/spiral/lin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrom(t *testing.T) {
	cmd := &cobra.Command{}
	a := From(cmd)
	require.NotNil(t, a)
	assert.Same(t, a, From(cmd), "app should be attached to the command context")

	b := NewApp()
	cmd = &cobra.Command{}
	cmd.SetContext(WithApp(context.Background(), b))
	assert.Same(t, b, From(cmd))
}

func TestAppConfig(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "dr2_data.wad")
	cfg := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("default_game: dr2\nthreads: 3\nlog_level: error\narchives:\n  - "+archive+"\n"), 0644))

	saved := Flags
	t.Cleanup(func() { Flags = saved })
	Flags.Config = cfg
	Flags.LogLevel = ""
	Flags.Threads = 0
	Flags.Game = ""

	a := NewApp()
	assert.Equal(t, 3, a.Threads())

	g, err := a.Game()
	require.NoError(t, err)
	assert.Equal(t, lin.GameDR2, g)

	p, err := a.Params([]string{"spc:compress=false"})
	require.NoError(t, err)
	v, ok := p.Get(formats.ParamLinGame)
	assert.True(t, ok)
	assert.Equal(t, "dr2", v)

	for _, name := range []string{"dr2_data", "dr2_data.wad"} {
		path, err := a.Resolve(name)
		if assert.NoError(t, err, name) {
			assert.Equal(t, archive, path, name)
		}
	}
	_, err = a.Resolve("dr3_data")
	assert.Error(t, err)

	f, err := a.Target("", "out.spc")
	require.NoError(t, err)
	assert.Equal(t, formats.SPC, f)
	_, err = a.Target("nope", "out.spc")
	assert.Error(t, err)

	assert.Contains(t, a.FormatNames(nil), "wad")
	assert.Contains(t, a.ArchiveExtensions(), "spc")
	assert.NotContains(t, a.ArchiveExtensions(), "cmp")
}

func TestAppFlagsOverrideConfig(t *testing.T) {
	saved := Flags
	t.Cleanup(func() { Flags = saved })
	Flags.Config = ""
	Flags.Threads = 7
	Flags.Game = lin.GameUDG

	a := NewApp()
	assert.Equal(t, 7, a.Threads())
	g, err := a.Game()
	require.NoError(t, err)
	assert.Equal(t, lin.GameUDG, g)
}
