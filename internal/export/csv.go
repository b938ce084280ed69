package export

import (
	"encoding/csv"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// WriteCSV writes header and rows to path. The file is written under a
// temporary name and renamed into place, so a failed export leaves no
// partial file behind.
func WriteCSV(path string, header []string, rows [][]string) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "export: create output dir")
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return eris.Wrap(err, "export: create file")
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		_ = f.Close()
		return eris.Wrap(err, "export: write header")
	}
	if err := w.WriteAll(rows); err != nil {
		_ = f.Close()
		return eris.Wrapf(err, "export: write rows to %s", path)
	}
	if err := f.Close(); err != nil {
		return eris.Wrap(err, "export: close file")
	}
	if err := os.Rename(tmp, path); err != nil {
		return eris.Wrap(err, "export: rename file")
	}
	return nil
}
