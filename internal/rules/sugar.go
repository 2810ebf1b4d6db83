// Package rules holds the domain rules of the sugar catalog: sugar level
// classification, serving-size math, the product confidence lifecycle,
// age-based sugar budgets and the normalization applied to every product and
// user write. Nothing in this package performs I/O.
package rules

import (
	"math"
	"strconv"
	"strings"

	"github.com/cambosugarscan/apiserver/types"
)

// Upper bounds, in grams of sugar per 100g, of the low and medium levels.
const (
	LowSugarMax    = 5.0
	MediumSugarMax = 22.5
)

// ClassifySugar maps grams of sugar per 100g to a sugar level. Negative and
// non-finite values are unknown.
func ClassifySugar(sugarPer100g float64) types.SugarLevel {
	if math.IsNaN(sugarPer100g) || math.IsInf(sugarPer100g, 0) || sugarPer100g < 0 {
		return types.SugarUnknown
	}
	if sugarPer100g <= LowSugarMax {
		return types.SugarLow
	}
	if sugarPer100g <= MediumSugarMax {
		return types.SugarMedium
	}
	return types.SugarHigh
}

// ClassifySugarText parses raw and classifies it. Blank or non-numeric text is unknown.
func ClassifySugarText(raw string) (float64, types.SugarLevel, bool) {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, types.SugarUnknown, false
	}
	return value, ClassifySugar(value), true
}
