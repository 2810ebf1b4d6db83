package types

import "time"

// SugarLevel is the coarse classification of grams of sugar per 100g.
type SugarLevel string

// Supported sugar levels.
const (
	SugarLow     SugarLevel = "low"
	SugarMedium  SugarLevel = "medium"
	SugarHigh    SugarLevel = "high"
	SugarUnknown SugarLevel = "unknown"
)

// Confidence is the trust tier of a product's sugar data.
type Confidence string

// Supported confidence tiers.
const (
	ConfidenceVerified  Confidence = "verified"
	ConfidenceCommunity Confidence = "community"
	ConfidenceManual    Confidence = "manual"
)

// Source records how a product entered the catalog.
type Source string

// Supported product sources.
const (
	SourceManual Source = "manual"
	SourceScan   Source = "scan"
)

// DefaultServingSizeG is used when a product has no valid serving size.
const DefaultServingSizeG = 100.0

// Product represents a packaged food item tracked in the catalog.
type Product struct {
	// ID is the opaque identifier assigned by the store at creation.
	ID string `json:"id" db:"id"`

	// Barcode is the globally unique package barcode, stored trimmed.
	Barcode string `json:"barcode" db:"barcode"`

	// NameKh is the Khmer product name. It is required.
	NameKh string `json:"nameKh" db:"name_kh"`

	// NameEn is the optional English product name.
	NameEn string `json:"nameEn" db:"name_en"`

	// Brand is the manufacturer or brand label.
	Brand string `json:"brand" db:"brand"`

	// SugarPer100g is the grams of sugar per 100g of product.
	SugarPer100g float64 `json:"sugarPer100g" db:"sugar_per_100g"`

	// SugarLevel is always derived from SugarPer100g and never taken from input.
	SugarLevel SugarLevel `json:"sugarLevel" db:"sugar_level"`

	// Confidence indicates how far the sugar data can be trusted.
	Confidence Confidence `json:"confidence" db:"confidence"`

	// Source records whether the product was typed in or scanned.
	Source Source `json:"source" db:"source"`

	// LastVerifiedAt is set while the product is verified and cleared when it
	// is downgraded without an explicit timestamp.
	LastVerifiedAt *time.Time `json:"lastVerifiedAt" db:"last_verified_at"`

	// DefaultServingSizeG is the serving size in grams used for per-serving values.
	DefaultServingSizeG float64 `json:"defaultServingSizeG" db:"default_serving_size_g"`

	// SugarPerServingG is computed at read time and never persisted.
	SugarPerServingG float64 `json:"sugarPerServingG" db:"-"`

	// Notes holds free-form remarks from the editor.
	Notes string `json:"notes" db:"notes"`

	// CreatedAt is the timestamp at which the product was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the product.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// ProductStats summarises the catalog by sugar level and confidence tier.
type ProductStats struct {
	TotalProducts  int `json:"totalProducts"`
	LowSugar       int `json:"lowSugar"`
	MediumSugar    int `json:"mediumSugar"`
	HighSugar      int `json:"highSugar"`
	VerifiedCount  int `json:"verifiedCount"`
	CommunityCount int `json:"communityCount"`
	ManualCount    int `json:"manualCount"`
}
