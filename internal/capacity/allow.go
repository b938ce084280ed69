package capacity

import "github.com/sells-group/smelt-cli/internal/model"

// SetAllowed sums the residential and non-residential building type flags.
// Null flags count as 0.
func SetAllowed(sc *model.SourceCapacity) {
	sc.AllowRes = sumFlags(sc.Allowed, model.ResidentialBuildingTypes)
	sc.AllowNonres = sumFlags(sc.Allowed, model.NonResidentialBuildingTypes)
}

func sumFlags(flags map[string]float64, codes []string) float64 {
	var sum float64
	for _, code := range codes {
		sum += flags[code]
	}
	return sum
}
