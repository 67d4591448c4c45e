package staticfiles

import (
	"bytes"
	"io/fs"
	"path"
	"time"
)

// overlayFS serves generated files on top of a base tree.
type overlayFS struct {
	base  fs.FS
	files map[string][]byte
}

func (o *overlayFS) Open(name string) (fs.File, error) {
	clean, err := cleanName("open", name)
	if err != nil {
		return nil, err
	}
	if data, ok := o.files[clean]; ok {
		return &memFile{Reader: bytes.NewReader(data), info: memInfo{name: path.Base(clean), size: int64(len(data))}}, nil
	}
	return o.base.Open(clean)
}

type memFile struct {
	*bytes.Reader
	info memInfo
}

func (f *memFile) Stat() (fs.FileInfo, error) { return f.info, nil }
func (f *memFile) Close() error               { return nil }

type memInfo struct {
	name string
	size int64
}

func (i memInfo) Name() string       { return i.name }
func (i memInfo) Size() int64        { return i.size }
func (i memInfo) Mode() fs.FileMode  { return 0o444 }
func (i memInfo) ModTime() time.Time { return time.Time{} }
func (i memInfo) IsDir() bool        { return false }
func (i memInfo) Sys() any           { return nil }
