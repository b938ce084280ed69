package layer

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// unpackShapefile extracts a zipped shapefile into dir and returns the path of
// its .shp member. Directory entries and macOS resource forks are skipped; the
// archive must hold exactly one .shp.
func unpackShapefile(archive, dir string) (string, error) {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return "", eris.Wrapf(err, "layer: open archive %s", archive)
	}
	defer zr.Close() //nolint:errcheck

	var shps []string
	for _, entry := range zr.File {
		if entry.FileInfo().IsDir() || isResourceFork(entry.Name) {
			continue
		}
		dest, err := entryPath(dir, entry.Name)
		if err != nil {
			return "", eris.Wrapf(err, "layer: %s", archive)
		}
		if err := writeEntry(entry, dest); err != nil {
			return "", eris.Wrapf(err, "layer: %s: extract %s", archive, entry.Name)
		}
		if strings.EqualFold(filepath.Ext(dest), ".shp") {
			shps = append(shps, dest)
		}
	}

	if len(shps) != 1 {
		return "", eris.Errorf("layer: %s: want one .shp member, found %d", archive, len(shps))
	}
	return shps[0], nil
}

// entryPath resolves name under dir, rejecting names that climb out of it.
func entryPath(dir, name string) (string, error) {
	root := filepath.Clean(dir)
	dest := filepath.Join(root, name)
	if !strings.HasPrefix(dest, root+string(os.PathSeparator)) {
		return "", eris.Errorf("entry %q escapes the extraction directory", name)
	}
	return dest, nil
}

func isResourceFork(name string) bool {
	return strings.HasPrefix(name, "__MACOSX/") || strings.HasPrefix(filepath.Base(name), "._")
}

func writeEntry(entry *zip.File, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	src, err := entry.Open()
	if err != nil {
		return err
	}
	defer src.Close() //nolint:errcheck

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close() //nolint:errcheck
		return err
	}
	return out.Close()
}
