package conflate

import (
	"fmt"

	"github.com/sells-group/smelt-cli/internal/model"
)

// SchemaMappingError reports a source column the mapping needs but the layer
// does not have. It fails the whole run.
type SchemaMappingError struct {
	Source model.Source
	Layer  string
	Column string
}

func (e *SchemaMappingError) Error() string {
	return fmt.Sprintf("conflate: layer %q (source %s) has no column %q", e.Layer, e.Source, e.Column)
}

// InclusionCountError reports that filtering lost records flagged incl = 1.
type InclusionCountError struct {
	Source   model.Source
	Layer    string
	Expected int
	Got      int
}

func (e *InclusionCountError) Error() string {
	return fmt.Sprintf("conflate: layer %q (source %s) has %d records with incl = 1 but %d survived filtering",
		e.Layer, e.Source, e.Expected, e.Got)
}
