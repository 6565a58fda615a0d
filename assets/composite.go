package assets

import (
	"io/fs"
)

// layeredFS looks a name up in every layer, newest first. The first layer
// holding the name wins.
type layeredFS struct {
	layers []fs.FS
}

func (l *layeredFS) add(fsys fs.FS) {
	l.layers = append(l.layers, fsys)
}

func (l *layeredFS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}

	for i := len(l.layers) - 1; i >= 0; i-- {
		if file, err := l.layers[i].Open(name); err == nil {
			return file, nil
		}
	}

	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}
