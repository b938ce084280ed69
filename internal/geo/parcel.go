// Package geo attaches parcel identity to development points: it answers
// "which parcel polygon contains this point" from an in-memory parcel index
// or a PostGIS parcel table.
package geo

import (
	"context"
	"strconv"
	"strings"
)

// Parcel is the read-only parcel attribute set a point inherits on a match.
type Parcel struct {
	ParcelID int64
	GeomID   *int64
	ZoneID   *int64
	// X and Y are the parcel centroid.
	X, Y *float64

	attrs map[string]string
}

// Attr returns a parcel-level attribute by case-insensitive name.
func (p *Parcel) Attr(name string) string {
	if p == nil || p.attrs == nil {
		return ""
	}
	return p.attrs[strings.ToLower(name)]
}

// AttrInt parses an integer parcel attribute. Decimal text such as "12.0"
// is accepted when it has no fractional part.
func (p *Parcel) AttrInt(name string) (int, bool) {
	return parseWholeNumber(p.Attr(name))
}

func (p *Parcel) setAttr(name, value string) {
	if p.attrs == nil {
		p.attrs = make(map[string]string)
	}
	p.attrs[strings.ToLower(name)] = value
}

// Locator finds the parcel containing a point. It returns nil, nil when no
// parcel contains it.
type Locator interface {
	Locate(ctx context.Context, x, y float64) (*Parcel, error)
}

func parseWholeNumber(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int64(f)) {
		return 0, false
	}
	return int(f), true
}

func parseInt64(s string) *int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return &n
	}
	// geom ids come out of some exports as 8.016918253805e+12
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int64(f)) {
		return nil
	}
	n := int64(f)
	return &n
}

func parseFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}
