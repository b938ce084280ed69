// Package capacity combines parcel zoning capacity from the basis and pba40
// datasets and imputes missing max density and max FAR.
package capacity

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/smelt-cli/internal/config"
	"github.com/sells-group/smelt-cli/internal/layer"
	"github.com/sells-group/smelt-cli/internal/model"
)

// Inputs are the tables combined into the parcel capacity table. ZoningMods
// and Jurisdictions are optional.
type Inputs struct {
	Parcels       *layer.Layer
	PBA40Parcels  *layer.Layer
	PBA40Lookup   *layer.Layer
	Basis         *layer.Layer
	ZoningMods    *layer.Layer
	Jurisdictions *layer.Layer
}

var basisMetaColumns = []string{"plu_id", "plu_jurisdiction", "plu_description", "building_types_source", "source"}

func capacityColumns() []string {
	return append([]string{"max_dua", "max_far", "max_height"}, model.AllowedBuildingTypes...)
}

// Validate checks every present table for the columns the combine reads.
func (in *Inputs) Validate() error {
	type table struct {
		name     string
		l        *layer.Layer
		required bool
		cols     []string
	}
	tables := []table{
		{"parcels", in.Parcels, true, []string{"PARCEL_ID", "ACRES"}},
		{"pba40 parcels", in.PBA40Parcels, true, []string{"geom_id", "zoning_id", "nodev"}},
		{"pba40 lookup", in.PBA40Lookup, true, append([]string{"id"}, capacityColumns()...)},
		{"basis", in.Basis, true, append(append([]string{"parcel_id"}, capacityColumns()...), basisMetaColumns...)},
		{"zoning mods", in.ZoningMods, false, []string{"PARCEL_ID", "juris", "pba50zoningmodcat", "nodev"}},
		{"jurisdictions", in.Jurisdictions, false, []string{"juris_name_full", "juris_id", "county_name", "county_id"}},
	}
	for _, t := range tables {
		if t.l == nil {
			if t.required {
				return eris.Errorf("capacity: %s table is required", t.name)
			}
			continue
		}
		for _, col := range t.cols {
			if !t.l.HasColumn(col) {
				return eris.Errorf("capacity: %s table %q has no column %q", t.name, t.l.Name, col)
			}
		}
	}
	if parcelGeomColumn(in.Parcels) == "" {
		return eris.Errorf("capacity: parcels table %q has no geom_id_s or geom_id column", in.Parcels.Name)
	}
	return nil
}

// LoadInputs reads the configured capacity tables concurrently.
func LoadInputs(ctx context.Context, cfg config.CapacityConfig) (*Inputs, error) {
	log := zap.L().With(zap.String("component", "capacity.inputs"))

	in := &Inputs{}
	targets := []struct {
		path string
		dst  **layer.Layer
	}{
		{cfg.ParcelsPath, &in.Parcels},
		{cfg.PBA40ParcelsPath, &in.PBA40Parcels},
		{cfg.PBA40LookupPath, &in.PBA40Lookup},
		{cfg.BasisPath, &in.Basis},
		{cfg.ZoningModsPath, &in.ZoningMods},
		{cfg.JurisLookupPath, &in.Jurisdictions},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, t := range targets {
		if t.path == "" {
			continue
		}
		g.Go(func() error {
			l, err := layer.Open(gctx, t.path)
			if err != nil {
				return eris.Wrapf(err, "capacity: load %s", t.path)
			}
			*t.dst = l
			log.Info("read capacity input", zap.String("path", t.path), zap.Int("rows", l.Len()))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return in, in.Validate()
}

func parcelGeomColumn(l *layer.Layer) string {
	for _, col := range []string{"geom_id_s", "geom_id"} {
		if l.HasColumn(col) {
			return col
		}
	}
	return ""
}
