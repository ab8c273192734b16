package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spiral-tools/spiral/lin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissing(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Config{}, c)

	c, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, Config{}, c)

	g, err := c.Game()
	require.NoError(t, err)
	assert.Equal(t, lin.GameDR1, g)
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spiral", "config.yaml")

	threads := 4
	c := Config{
		DefaultGame: "dr2",
		LogLevel:    "debug",
		Threads:     &threads,
	}
	assert.Equal(t, 2, c.Register("/games/dr2/dr2_data.wad", "/games/dr2/dr2_data_us.wad"))
	require.NoError(t, c.Save(path))

	l, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, c, l)

	g, err := l.Game()
	require.NoError(t, err)
	assert.Equal(t, lin.GameDR2, g)

	ents, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, ents, 1, "temp file should be gone")
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("default_game: udg\narchives:\n  - a.wad\n  - b.cpk\n"), 0666))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "udg", c.DefaultGame)
	assert.Nil(t, c.Threads)
	assert.Equal(t, []string{"a.wad", "b.cpk"}, c.Archives)
}

func TestLoadInvalid(t *testing.T) {
	for _, x := range []struct {
		Name string
		YAML string
	}{
		{"syntax", "archives: [\n"},
		{"game", "default_game: dr3\n"},
		{"level", "log_level: loud\n"},
		{"threads", "threads: -1\n"},
	} {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(x.YAML), 0666))

		_, err := Load(path)
		t.Logf("LOG: %s: %v", x.Name, err)
		assert.Error(t, err, x.Name)
	}
}

func TestRegister(t *testing.T) {
	var c Config
	assert.Equal(t, 2, c.Register("a.wad", "dir/../b.wad", "a.wad"))
	assert.Equal(t, []string{"a.wad", "b.wad"}, c.Archives)
	assert.Equal(t, 0, c.Register("./a.wad"))

	assert.Equal(t, 1, c.Unregister("a.wad", "c.wad"))
	assert.Equal(t, []string{"b.wad"}, c.Archives)
}
