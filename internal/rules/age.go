package rules

import (
	"math"
	"time"

	"github.com/cambosugarscan/apiserver/types"
)

// Age and birth year bounds accepted from input.
const (
	MinAge       = 0
	MaxAge       = 120
	MinBirthYear = 1900
)

const errInvalidAge = "provide a valid age (0-120) or birth year"

// AgeProfile is the age group and daily sugar budget for an age.
type AgeProfile struct {
	AgeGroup         types.AgeGroup
	DailySugarLimitG int
}

// AgeFields is the normalized age data stored on a user.
type AgeFields struct {
	Age              *int
	BirthYear        *int
	AgeGroup         types.AgeGroup
	DailySugarLimitG int
}

// ResolveAge returns the effective age. A valid explicit age wins over the
// birth year; nil means neither source resolves.
func ResolveAge(age, birthYear *float64, currentYear int) *int {
	if age != nil && !math.IsNaN(*age) && *age >= MinAge && *age <= MaxAge {
		resolved := int(math.Floor(*age))
		return &resolved
	}

	if birthYear != nil && !math.IsNaN(*birthYear) && *birthYear >= MinBirthYear && *birthYear <= float64(currentYear) {
		resolved := currentYear - int(math.Floor(*birthYear))
		if resolved >= MinAge && resolved <= MaxAge {
			return &resolved
		}
	}

	return nil
}

// ProfileAge maps an age to its group and daily sugar budget. Unknown or out
// of range ages get the adult defaults.
func ProfileAge(age *int) AgeProfile {
	switch {
	case age == nil || *age < MinAge || *age > MaxAge:
		return AgeProfile{AgeGroup: types.AgeGroupAdult, DailySugarLimitG: 25}
	case *age <= 12:
		return AgeProfile{AgeGroup: types.AgeGroupChildren, DailySugarLimitG: 15}
	case *age <= 59:
		return AgeProfile{AgeGroup: types.AgeGroupAdult, DailySugarLimitG: 25}
	default:
		return AgeProfile{AgeGroup: types.AgeGroupElderly, DailySugarLimitG: 20}
	}
}

// NormalizeAge turns the submitted age and birth year into stored age fields.
//
// When neither field is supplied the existing record's values are kept (or
// nothing is known on create). Supplied input that does not resolve to a valid
// age is rejected.
func NormalizeAge(age, birthYear types.Value, existing *types.User, now time.Time) (AgeFields, error) {
	currentYear := now.Year()
	hasAge := !age.Blank()
	hasBirthYear := !birthYear.Blank()

	var sourceAge, sourceBirthYear *float64
	if hasAge {
		sourceAge = parseOptional(age)
	} else if existing != nil && existing.Age != nil {
		v := float64(*existing.Age)
		sourceAge = &v
	}
	if hasBirthYear {
		sourceBirthYear = parseOptional(birthYear)
	} else if existing != nil && existing.BirthYear != nil {
		v := float64(*existing.BirthYear)
		sourceBirthYear = &v
	}

	resolved := ResolveAge(sourceAge, sourceBirthYear, currentYear)
	if (hasAge || hasBirthYear) && resolved == nil {
		return AgeFields{}, invalid(errInvalidAge)
	}

	var storedBirthYear *int
	switch {
	case hasBirthYear && sourceBirthYear != nil:
		year := int(math.Floor(*sourceBirthYear))
		if year < MinBirthYear || year > currentYear {
			return AgeFields{}, invalid(errInvalidAge)
		}
		storedBirthYear = &year
	case !hasBirthYear && existing != nil && existing.BirthYear != nil:
		year := *existing.BirthYear
		storedBirthYear = &year
	}

	profile := ProfileAge(resolved)
	return AgeFields{
		Age:              resolved,
		BirthYear:        storedBirthYear,
		AgeGroup:         profile.AgeGroup,
		DailySugarLimitG: profile.DailySugarLimitG,
	}, nil
}

func parseOptional(v types.Value) *float64 {
	f, ok := v.Float()
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
