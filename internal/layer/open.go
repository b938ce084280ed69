package layer

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Open reads a layer, choosing the reader from the file extension.
// Supported: .shp, .zip (one shapefile inside), .csv, .xlsx.
func Open(ctx context.Context, path string) (*Layer, error) {
	ext := strings.ToLower(filepath.Ext(path))

	var (
		l   *Layer
		err error
	)
	switch ext {
	case ".shp":
		l, err = ReadShapefile(path)
	case ".csv", ".txt":
		l, err = ReadCSV(ctx, path)
	case ".xlsx":
		l, err = ReadXLSX(path, XLSXOptions{})
	case ".zip":
		l, err = openZippedShapefile(path)
	default:
		return nil, eris.Errorf("layer: unsupported file type %q for %s", ext, path)
	}
	if err != nil {
		return nil, err
	}

	zap.L().Debug("layer: loaded",
		zap.String("path", path),
		zap.String("layer", l.Name),
		zap.Int("features", l.Len()),
		zap.Int("columns", len(l.Columns)),
	)
	return l, nil
}

func openZippedShapefile(path string) (*Layer, error) {
	dir, err := os.MkdirTemp("", "smelt-layer-*")
	if err != nil {
		return nil, eris.Wrap(err, "layer: create temp dir")
	}
	defer os.RemoveAll(dir) //nolint:errcheck

	shpPath, err := unpackShapefile(path, dir)
	if err != nil {
		return nil, err
	}

	l, err := ReadShapefile(shpPath)
	if err != nil {
		return nil, err
	}
	l.Name = layerName(path)
	return l, nil
}
