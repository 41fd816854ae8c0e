// SPDX-License-Identifier: MPL-2.0

package kar

import (
	"io/fs"
)

// AddFS adds every regular file of fsys, keyed by its slash path.
func (b *Builder) AddFS(fsys fs.FS) error {
	return fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return err
		}
		return b.Add(path, data, info.ModTime())
	})
}
