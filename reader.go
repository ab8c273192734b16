package spiral

import (
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

// FS is a read-only file system view of an Archive. Directories are
// synthesized from the slash-separated entry names. If several entries share
// a name, the first one wins.
type FS struct {
	entry []Entry
}

// NewFS creates a new FS from the current entries of a.
func NewFS(a Archive) *FS {
	es := a.Entries()
	for i := range es {
		es[i].Name = strings.TrimPrefix(path.Clean("/"+es[i].Name), "/")
	}
	return &FS{entry: es}
}

var (
	_ fs.FS          = (*FS)(nil)
	_ fs.File        = (*fsFile)(nil)
	_ fs.ReadDirFile = (*fsDir)(nil)
	_ fs.DirEntry    = (*fsInfo)(nil)
	_ fs.FileInfo    = (*fsInfo)(nil)
)

type fsFile struct {
	info fsInfo
	rc   io.ReadCloser
}

func (f *fsFile) Stat() (fs.FileInfo, error) {
	return &f.info, nil
}

func (f *fsFile) Read(b []byte) (n int, err error) {
	return f.rc.Read(b)
}

func (f *fsFile) Close() error {
	return f.rc.Close()
}

type fsDir struct {
	info   fsInfo
	entry  []*fsInfo
	offset int
}

func (f *fsDir) Stat() (fs.FileInfo, error) {
	return &f.info, nil
}

func (f *fsDir) Read(b []byte) (n int, err error) {
	return 0, &fs.PathError{Op: "read", Path: f.info.name, Err: fs.ErrInvalid}
}

func (f *fsDir) Close() error {
	return nil
}

func (d *fsDir) ReadDir(count int) ([]fs.DirEntry, error) {
	n := len(d.entry) - d.offset
	if n == 0 && count > 0 {
		return nil, io.EOF
	}
	if count > 0 && n > count {
		n = count
	}
	list := make([]fs.DirEntry, n)
	for i := range list {
		list[i] = d.entry[d.offset+i]
	}
	d.offset += n
	return list, nil
}

type fsInfo struct {
	name  string
	entry *Entry
}

func (i *fsInfo) Info() (fs.FileInfo, error) {
	return i, nil
}

func (i *fsInfo) Type() fs.FileMode {
	return i.Mode().Type()
}

func (i *fsInfo) Name() string {
	return i.name
}

func (i *fsInfo) Size() int64 {
	if i.IsDir() {
		return 0
	}
	return int64(i.entry.Size)
}

func (i *fsInfo) Mode() fs.FileMode {
	if i.IsDir() {
		return 0777 | fs.ModeDir
	}
	return 0666
}

func (i *fsInfo) ModTime() time.Time {
	return time.Time{}
}

func (i *fsInfo) IsDir() bool {
	return i.entry == nil
}

// Sys returns the Entry for files.
func (i *fsInfo) Sys() any {
	if i.IsDir() {
		return nil
	}
	return *i.entry
}

// Open implements fs.FS.
func (f *FS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	for ei, e := range f.entry {
		if e.Name == name {
			rc, err := e.Open()
			if err != nil {
				return nil, &fs.PathError{Op: "open", Path: name, Err: err}
			}
			return &fsFile{fsInfo{path.Base(name), &f.entry[ei]}, rc}, nil
		}
	}
	things := map[string]*Entry{}
	prefix := name + "/"
	if name == "." {
		prefix = ""
	}
	for ei, e := range f.entry {
		if tmp, ok := strings.CutPrefix(e.Name, prefix); ok {
			if i := strings.Index(tmp, "/"); i < 0 {
				if _, dup := things[tmp]; !dup {
					things[tmp] = &f.entry[ei]
				}
			} else {
				things[tmp[:i]] = nil
			}
		}
	}
	if len(things) == 0 && name != "." {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist} // not a file, and not a dir prefix of any file
	}
	var dirents []*fsInfo
	for thing, e := range things {
		dirents = append(dirents, &fsInfo{thing, e})
	}
	sort.Slice(dirents, func(i, j int) bool {
		return dirents[i].name < dirents[j].name
	})
	return &fsDir{fsInfo{name[strings.LastIndex(name, "/")+1:], nil}, dirents, 0}, nil
}
