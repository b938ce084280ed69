package conflate

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/smelt-cli/internal/model"
)

// setter parses source text into one canonical field. Callers never pass
// empty text; an empty cell stays null.
type setter func(r *model.DevelopmentRecord, v string) error

// setters maps canonical field names to their parsers.
var setters = map[string]setter{
	"raw_id":                textField(func(r *model.DevelopmentRecord) **string { return &r.RawID }),
	"building_name":         textField(func(r *model.DevelopmentRecord) **string { return &r.BuildingName }),
	"site_name":             textField(func(r *model.DevelopmentRecord) **string { return &r.SiteName }),
	"action":                setAction,
	"address":               textField(func(r *model.DevelopmentRecord) **string { return &r.Address }),
	"city":                  textField(func(r *model.DevelopmentRecord) **string { return &r.City }),
	"zip":                   textField(func(r *model.DevelopmentRecord) **string { return &r.Zip }),
	"county":                textField(func(r *model.DevelopmentRecord) **string { return &r.County }),
	"x":                     floatField(func(r *model.DevelopmentRecord) **float64 { return &r.X }),
	"y":                     floatField(func(r *model.DevelopmentRecord) **float64 { return &r.Y }),
	"geom_id":               int64Field(func(r *model.DevelopmentRecord) **int64 { return &r.GeomID }),
	"year_built":            intField(func(r *model.DevelopmentRecord) **int { return &r.YearBuilt }),
	"building_type_det":     setBuildingTypeDet,
	"building_sqft":         roundedField(func(r *model.DevelopmentRecord) **int64 { return &r.BuildingSqft }),
	"non_residential_sqft":  floatField(func(r *model.DevelopmentRecord) **float64 { return &r.NonResidentialSqft }),
	"residential_units":     intField(func(r *model.DevelopmentRecord) **int { return &r.ResidentialUnits }),
	"unit_ave_sqft":         floatField(func(r *model.DevelopmentRecord) **float64 { return &r.UnitAveSqft }),
	"tenure":                setTenure,
	"rent_type":             textField(func(r *model.DevelopmentRecord) **string { return &r.RentType }),
	"stories":               intField(func(r *model.DevelopmentRecord) **int { return &r.Stories }),
	"parking_spaces":        intField(func(r *model.DevelopmentRecord) **int { return &r.ParkingSpaces }),
	"average_weighted_rent": textField(func(r *model.DevelopmentRecord) **string { return &r.AverageWeightedRent }),
	"last_sale_year":        setLastSaleYear,
	"last_sale_price":       floatField(func(r *model.DevelopmentRecord) **float64 { return &r.LastSalePrice }),
	"duration":              floatField(func(r *model.DevelopmentRecord) **float64 { return &r.Duration }),
	"rent_ave_sqft":         floatField(func(r *model.DevelopmentRecord) **float64 { return &r.RentAveSqft }),
	"rent_ave_unit":         floatField(func(r *model.DevelopmentRecord) **float64 { return &r.RentAveUnit }),
	"incl":                  intField(func(r *model.DevelopmentRecord) **int { return &r.Incl }),
}

func textField(slot func(*model.DevelopmentRecord) **string) setter {
	return func(r *model.DevelopmentRecord, v string) error {
		*slot(r) = model.Ptr(v)
		return nil
	}
}

func floatField(slot func(*model.DevelopmentRecord) **float64) setter {
	return func(r *model.DevelopmentRecord, v string) error {
		f, err := parseNumber(v)
		if err != nil {
			return err
		}
		*slot(r) = &f
		return nil
	}
}

// roundedField stores a floor area rounded to the nearest whole square foot.
func roundedField(slot func(*model.DevelopmentRecord) **int64) setter {
	return func(r *model.DevelopmentRecord, v string) error {
		f, err := parseNumber(v)
		if err != nil {
			return err
		}
		*slot(r) = model.Ptr(int64(math.Round(f)))
		return nil
	}
}

func intField(slot func(*model.DevelopmentRecord) **int) setter {
	return func(r *model.DevelopmentRecord, v string) error {
		f, err := parseNumber(v)
		if err != nil {
			return err
		}
		n := int(f)
		if float64(n) != f {
			return eris.Errorf("conflate: %q is not a whole number", v)
		}
		*slot(r) = &n
		return nil
	}
}

func int64Field(slot func(*model.DevelopmentRecord) **int64) setter {
	return func(r *model.DevelopmentRecord, v string) error {
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			*slot(r) = &n
			return nil
		}
		f, err := parseNumber(v)
		if err != nil {
			return err
		}
		n := int64(f)
		if float64(n) != f {
			return eris.Errorf("conflate: %q is not a whole number", v)
		}
		*slot(r) = &n
		return nil
	}
}

func setAction(r *model.DevelopmentRecord, v string) error {
	switch a := model.Action(strings.ToLower(strings.TrimSpace(v))); a {
	case model.ActionBuild, model.ActionAdd:
		r.Action = a
		return nil
	default:
		return eris.Errorf("conflate: unknown action %q", v)
	}
}

func setTenure(r *model.DevelopmentRecord, v string) error {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "rent":
		r.Tenure = model.Ptr(model.TenureRent)
	case "sale":
		r.Tenure = model.Ptr(model.TenureSale)
	default:
		return eris.Errorf("conflate: unknown tenure %q", v)
	}
	return nil
}

func setBuildingTypeDet(r *model.DevelopmentRecord, v string) error {
	r.BuildingTypeDet = model.Ptr(strings.ToUpper(strings.TrimSpace(v)))
	return nil
}

func setLastSaleYear(r *model.DevelopmentRecord, v string) error {
	year, err := parseYear(v)
	if err != nil {
		return err
	}
	r.LastSaleYear = &year
	return nil
}

// parseNumber accepts plain and thousands-separated numbers.
func parseNumber(v string) (float64, error) {
	s := strings.ReplaceAll(strings.TrimSpace(v), ",", "")
	s = strings.TrimPrefix(s, "$")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, eris.Errorf("conflate: %q is not a number", v)
	}
	return f, nil
}

var dateLayouts = []string{
	"1/2/2006 3:04:05 PM",
	"1/2/2006 15:04:05",
	"1/2/2006",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"20060102",
}

// parseYear extracts the year from sale date text. A bare year, including
// the "2015.0" form numeric exports produce, is accepted as is.
func parseYear(v string) (int, error) {
	s := strings.TrimSpace(v)
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int(f)) && f >= 1000 && f <= 9999 {
		return int(f), nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Year(), nil
		}
	}
	return 0, eris.Errorf("conflate: %q is not a date", v)
}
