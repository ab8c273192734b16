package arcutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spiral-tools/spiral"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIgnore(t *testing.T) {
	var ig Ignore
	require.NoError(t, ig.Parse(`
# comment
*.bak
/build
script   # trailing comment
! script/keep.lin
`))
	for _, x := range []struct {
		Path  string
		Match bool
	}{
		{"a.bak", true},
		{"dir/a.bak", true},
		{"a.bak.txt", false},
		{"build", true},
		{"build/out.wad", true},
		{"src/build", false},
		{"script/e00_001.lin", true},
		{"script/keep.lin", false},
		{"data/script", true},
		{"e00_001.lin", false},
	} {
		m := ig.Match(x.Path)
		t.Logf("LOG: match(%q) = %t", x.Path, m)
		if m != x.Match {
			t.Errorf("ERR: match(%q) expected %t", x.Path, x.Match)
		}
	}

	var re Ignore
	require.NoError(t, re.Parse(ig.String()))
	assert.Equal(t, ig, re)
}

func TestIgnoreAdd(t *testing.T) {
	var ig Ignore
	assert.NoError(t, ig.Add("*.lin", false))
	assert.NoError(t, ig.Add("keep.lin", true))
	for _, g := range []string{"!a", "a#b", "a\nb", " a", ""} {
		assert.Error(t, ig.Add(g, false), "%q", g)
	}
	assert.True(t, ig.Match("e00.lin"))
	assert.False(t, ig.Match("keep.lin"))
}

func TestIgnoreDefault(t *testing.T) {
	var ig Ignore
	ig.AddDefault()
	assert.True(t, ig.Match(IgnoreFilename))
	assert.True(t, ig.Match("dir/.DS_Store"))
	assert.True(t, ig.Match(".git/config"))
	assert.False(t, ig.Match("dir/"+IgnoreFilename))
	assert.False(t, ig.Match("dr1_data.wad"))
}

func TestFilter(t *testing.T) {
	for _, x := range []struct {
		Name    string
		Args    []string
		Entry   string
		Skipped bool
	}{
		{"none", nil, "a/b.lin", false},
		{"exclude", []string{"-e", "*.lin"}, "a/b.lin", true},
		{"exclude other", []string{"-e", "*.srd"}, "a/b.lin", false},
		{"include only", []string{"-E", "/a"}, "a/b.lin", false},
		{"include only other", []string{"-E", "/b"}, "a/b.lin", true},
		{"exclude then include", []string{"--exclude", "/a", "--include", "b.lin"}, "a/b.lin", false},
		{"exclude then include other", []string{"--exclude", "/a", "--include", "c.lin"}, "a/b.lin", true},
	} {
		set := pflag.NewFlagSet("test", pflag.ContinueOnError)
		f := NewFilter(set)
		require.NoError(t, set.Parse(x.Args), x.Name)

		skip, err := f.Skip(x.Entry)
		require.NoError(t, err, x.Name)
		t.Logf("LOG: %s: skip(%q) = %t", x.Name, x.Entry, skip)
		assert.Equal(t, x.Skipped, skip, x.Name)
	}

	_, err := Filter{Exclude: &[]string{"["}}.Skip("a")
	assert.Error(t, err)
}

func TestWalk(t *testing.T) {
	dir := t.TempDir()
	for name, data := range map[string]string{
		"b.lin":               "b",
		"a/c.srd":             "cc",
		"a/d.bak":             "ignored",
		"a/.DS_Store":         "",
		"tmp/x.txt":           "ignored",
		IgnoreFilename:        "*.bak\n/tmp\n.DS_Store\n/" + IgnoreFilename + "\n",
		"a/" + IgnoreFilename: "not ignored",
	} {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0777))
		require.NoError(t, os.WriteFile(p, []byte(data), 0666))
	}

	files, err := Walk(dir)
	require.NoError(t, err)

	var names []string
	for _, f := range files {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"a/" + IgnoreFilename, "a/c.srd", "b.lin"}, names)
	assert.Equal(t, uint64(2), files[1].Size)

	w := spiral.NewCustomWAD()
	AddFiles(w, files)
	b, err := os.Create(filepath.Join(t.TempDir(), "out.wad"))
	require.NoError(t, err)
	defer b.Close()
	require.NoError(t, w.Compile(b))

	wad, err := spiral.ParseWAD(spiral.FileSource(b.Name()))
	require.NoError(t, err)
	require.Len(t, wad.Entries(), 3)
	data, err := spiral.ReadAll(wad.Entries()[1].Source)
	require.NoError(t, err)
	assert.Equal(t, "cc", string(data))
}

func TestWalkDefault(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Thumbs.db"), nil, 0666))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "e00.lin"), nil, 0666))

	files, err := Walk(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "e00.lin", files[0].Name)
}
