package arcutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/spiral-tools/spiral"
)

// File is a file found by Walk.
type File struct {
	Name string // slash-separated, relative to the root
	Size uint64
	Path string // on disk
}

// Walk lists the regular files under dir in lexical order, skipping those
// matched by the directory's ignore file (or the default rules if it has
// none).
func Walk(dir string) ([]File, error) {
	var ig Ignore
	if err := ig.ParseFile(filepath.Join(dir, IgnoreFilename)); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", IgnoreFilename, err)
		}
		ig.AddDefault()
	}

	var files []File
	err := fs.WalkDir(os.DirFS(dir), ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if name == "." {
			return nil
		}
		if ig.Match(name) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, File{
			Name: path.Clean(name),
			Size: uint64(fi.Size()),
			Path: filepath.Join(dir, filepath.FromSlash(name)),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %q: %w", dir, err)
	}
	return files, nil
}

// Builder is the subset of a custom archive writer used by AddFiles.
type Builder interface {
	Add(name string, size uint64, src spiral.DataSource)
}

// AddFiles adds files to b.
func AddFiles(b Builder, files []File) {
	for _, f := range files {
		b.Add(f.Name, f.Size, spiral.FileSource(f.Path))
	}
}
