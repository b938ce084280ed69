package export

import (
	"path/filepath"
	"time"
)

// Stamp formats the run time used to prefix output file names.
func Stamp(t time.Time) string {
	return t.Format("2006_0102_1504")
}

// DateStamp formats the run date used to prefix capacity output names.
func DateStamp(t time.Time) string {
	return t.Format("2006_01_02")
}

// Path joins dir with "<stamp>_<name><ext>".
func Path(dir, stamp, name, ext string) string {
	return filepath.Join(dir, stamp+"_"+name+ext)
}
