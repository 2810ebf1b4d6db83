package rules

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var sugarLabelPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:total\s+)?sugars?\s*[:\-]?\s*(\d+(?:[.,]\d+)?)\s*g`),
	regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*g\s*(?:total\s+)?sugars?`),
}

// LabelEstimate is the sugar value read from nutrition label text.
type LabelEstimate struct {
	SugarPer100g *float64 `json:"sugarPer100g"`
	MatchedText  *string  `json:"matchedText"`
}

// EstimateSugarFromLabel looks for a "sugar ... g" amount in label text and
// returns it rounded to one decimal. Both fields are nil when nothing matches.
func EstimateSugarFromLabel(text string) LabelEstimate {
	for _, pattern := range sugarLabelPatterns {
		match := pattern.FindStringSubmatch(text)
		if match == nil {
			continue
		}

		value, err := strconv.ParseFloat(strings.Replace(match[1], ",", ".", 1), 64)
		if err != nil || value < 0 {
			continue
		}

		rounded, _ := decimal.NewFromFloat(value).Round(1).Float64()
		matched := match[0]
		return LabelEstimate{SugarPer100g: &rounded, MatchedText: &matched}
	}
	return LabelEstimate{}
}
