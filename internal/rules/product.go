package rules

import (
	"math"
	"strings"
	"time"

	"github.com/cambosugarscan/apiserver/types"
	"github.com/shopspring/decimal"
)

const errInvalidProduct = "invalid data"

// ProductInput is a raw product submission. Absent fields inherit the existing
// record on update. Derived fields such as sugarLevel are not part of the input
// and are ignored when a client sends them.
type ProductInput struct {
	Barcode             types.Value `json:"barcode"`
	NameKh              types.Value `json:"nameKh"`
	NameEn              types.Value `json:"nameEn"`
	Brand               types.Value `json:"brand"`
	SugarPer100g        types.Value `json:"sugarPer100g"`
	Confidence          types.Value `json:"confidence"`
	Source              types.Value `json:"source"`
	LastVerifiedAt      types.Value `json:"lastVerifiedAt"`
	DefaultServingSizeG types.Value `json:"defaultServingSizeG"`
	Notes               types.Value `json:"notes"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// BuildProduct validates a submission and merges it onto existing (nil on
// create), returning the canonical record to persist. ID and audit timestamps
// are carried over from existing untouched.
func BuildProduct(in ProductInput, existing *types.Product, now time.Time) (types.Product, error) {
	var base types.Product
	if existing != nil {
		base = *existing
	}

	out := base
	out.Barcode = pickText(in.Barcode, base.Barcode)
	out.NameKh = pickText(in.NameKh, base.NameKh)

	sugar := base.SugarPer100g
	hasSugar := existing != nil
	if in.SugarPer100g.HasValue() {
		sugar, hasSugar = in.SugarPer100g.Float()
	}
	level := types.SugarUnknown
	if hasSugar {
		level = ClassifySugar(sugar)
	}

	if out.Barcode == "" || out.NameKh == "" || level == types.SugarUnknown {
		return types.Product{}, invalid(errInvalidProduct)
	}
	out.SugarPer100g = sugar
	out.SugarLevel = level

	confidence := base.Confidence
	if in.Confidence.HasValue() {
		confidence = types.Confidence(in.Confidence.String())
	}
	out.Confidence = NormalizeConfidence(string(confidence))
	out.LastVerifiedAt = verificationTime(in.LastVerifiedAt, out.Confidence, base.LastVerifiedAt, now)

	serving := base.DefaultServingSizeG
	if in.DefaultServingSizeG.HasValue() {
		serving, _ = in.DefaultServingSizeG.Float()
	}
	out.DefaultServingSizeG = ServingSize(serving)

	out.NameEn = pickOptionalText(in.NameEn, base.NameEn)
	out.Brand = pickOptionalText(in.Brand, base.Brand)
	out.Notes = pickOptionalText(in.Notes, base.Notes)

	source := string(base.Source)
	if !in.Source.Blank() {
		source = in.Source.Trimmed()
	}
	out.Source = NormalizeSource(source)
	out.SugarPerServingG = 0

	return out, nil
}

// verificationTime applies the lastVerifiedAt lifecycle. A supplied timestamp
// wins. Without one, the stored value is inherited, entering verified stamps
// now and leaving verified clears it.
func verificationTime(raw types.Value, confidence types.Confidence, stored *time.Time, now time.Time) *time.Time {
	supplied := raw.Present()

	// An unparseable timestamp is treated as absent rather than rejected.
	// TODO: reject unparseable lastVerifiedAt once existing clients send ISO-8601 only.
	verifiedAt := ParseTimestamp(raw)

	if !supplied && stored != nil {
		t := *stored
		verifiedAt = &t
	}
	if confidence == types.ConfidenceVerified && verifiedAt == nil {
		t := now
		verifiedAt = &t
	}
	if confidence != types.ConfidenceVerified && !supplied {
		verifiedAt = nil
	}
	return verifiedAt
}

// ParseTimestamp parses an ISO-8601 style timestamp or a JSON number of Unix
// milliseconds. Null, blank and unparseable values yield nil.
func ParseTimestamp(raw types.Value) *time.Time {
	if raw.Blank() {
		return nil
	}
	if raw.IsNumber() {
		ms, ok := raw.Float()
		if !ok || math.IsInf(ms, 0) || math.IsNaN(ms) {
			return nil
		}
		t := time.UnixMilli(int64(ms)).UTC()
		return &t
	}
	text := raw.Trimmed()
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// NormalizeConfidence maps raw to a known tier; anything else is manual.
func NormalizeConfidence(raw string) types.Confidence {
	switch c := types.Confidence(strings.ToLower(strings.TrimSpace(raw))); c {
	case types.ConfidenceVerified, types.ConfidenceCommunity, types.ConfidenceManual:
		return c
	default:
		return types.ConfidenceManual
	}
}

// NormalizeSource maps raw to a known source; anything else is manual.
func NormalizeSource(raw string) types.Source {
	switch s := types.Source(strings.ToLower(strings.TrimSpace(raw))); s {
	case types.SourceManual, types.SourceScan:
		return s
	default:
		return types.SourceManual
	}
}

// ServingSize returns grams, or the 100g default for non-positive and
// non-finite values.
func ServingSize(grams float64) float64 {
	if math.IsNaN(grams) || math.IsInf(grams, 0) || grams <= 0 {
		return types.DefaultServingSizeG
	}
	return grams
}

// ServingSugar returns grams of sugar in one serving, rounded to 2 decimals.
func ServingSugar(sugarPer100g, servingSizeG float64) float64 {
	if math.IsNaN(sugarPer100g) || math.IsInf(sugarPer100g, 0) {
		sugarPer100g = 0
	}
	value, _ := decimal.NewFromFloat(sugarPer100g).
		Mul(decimal.NewFromFloat(ServingSize(servingSizeG))).
		Div(decimal.NewFromInt(100)).
		Round(2).
		Float64()
	return value
}

// WithServing returns p with the serving size defaulted and sugarPerServingG
// recomputed. Products must pass through it before they leave the service.
func WithServing(p types.Product) types.Product {
	p.DefaultServingSizeG = ServingSize(p.DefaultServingSizeG)
	p.SugarPerServingG = ServingSugar(p.SugarPer100g, p.DefaultServingSizeG)
	return p
}

func pickText(in types.Value, fallback string) string {
	if !in.Blank() {
		return in.Trimmed()
	}
	return strings.TrimSpace(fallback)
}

func pickOptionalText(in types.Value, fallback string) string {
	if in.HasValue() {
		return in.Trimmed()
	}
	return fallback
}
