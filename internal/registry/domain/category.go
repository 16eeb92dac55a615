// Package domain holds the pure token model: the closed category set, token
// state transitions, address derivation, and mint grant verification. Nothing
// in this package touches storage or transports.
package domain

import (
	apperrors "github.com/typemint/typemint/internal/platform/errors"
)

// Category is one of the sixteen fixed personality-type codes. The zero value
// is invalid; ParseCategory is the only way to obtain a valid Category from
// external input.
type Category int

const (
	// CategoryUnspecified represents an invalid category value.
	CategoryUnspecified Category = iota

	// Realists
	CategoryESTP
	CategoryESFP
	CategoryISTP
	CategoryISFP

	// Guardians
	CategoryESTJ
	CategoryESFJ
	CategoryISTJ
	CategoryISFJ

	// Rationals
	CategoryENTJ
	CategoryENTP
	CategoryINTJ
	CategoryINTP

	// Idealists
	CategoryENFJ
	CategoryENFP
	CategoryINFJ
	CategoryINFP
)

// Group is the temperament group a category belongs to.
type Group string

const (
	// GroupUnspecified represents an invalid group value.
	GroupUnspecified Group = ""
	// GroupRealists covers ESTP, ESFP, ISTP, ISFP.
	GroupRealists Group = "realists"
	// GroupGuardians covers ESTJ, ESFJ, ISTJ, ISFJ.
	GroupGuardians Group = "guardians"
	// GroupRationals covers ENTJ, ENTP, INTJ, INTP.
	GroupRationals Group = "rationals"
	// GroupIdealists covers ENFJ, ENFP, INFJ, INFP.
	GroupIdealists Group = "idealists"
)

var categoryCodes = map[Category]string{
	CategoryESTP: "ESTP",
	CategoryESFP: "ESFP",
	CategoryISTP: "ISTP",
	CategoryISFP: "ISFP",
	CategoryESTJ: "ESTJ",
	CategoryESFJ: "ESFJ",
	CategoryISTJ: "ISTJ",
	CategoryISFJ: "ISFJ",
	CategoryENTJ: "ENTJ",
	CategoryENTP: "ENTP",
	CategoryINTJ: "INTJ",
	CategoryINTP: "INTP",
	CategoryENFJ: "ENFJ",
	CategoryENFP: "ENFP",
	CategoryINFJ: "INFJ",
	CategoryINFP: "INFP",
}

var categoriesByCode = func() map[string]Category {
	byCode := make(map[string]Category, len(categoryCodes))
	for category, code := range categoryCodes {
		byCode[code] = category
	}
	return byCode
}()

// ParseCategory maps a raw code to a Category. Matching is exact: case
// variants, whitespace, and any string outside the sixteen codes are
// rejected with CodeInvalidCategory.
func ParseCategory(code string) (Category, error) {
	category, ok := categoriesByCode[code]
	if !ok {
		return CategoryUnspecified, apperrors.WithMetadata(
			apperrors.CodeInvalidCategory,
			"category is not one of the sixteen personality-type codes",
			map[string]string{"Category": code},
		)
	}
	return category, nil
}

// IsValidCategory reports whether code is one of the sixteen defined codes.
func IsValidCategory(code string) bool {
	_, ok := categoriesByCode[code]
	return ok
}

// String returns the four-letter code, or an empty string for invalid values.
func (c Category) String() string {
	return categoryCodes[c]
}

// Valid reports whether c is one of the sixteen defined categories.
func (c Category) Valid() bool {
	_, ok := categoryCodes[c]
	return ok
}

// Group returns the temperament group for the category.
func (c Category) Group() Group {
	switch c {
	case CategoryESTP, CategoryESFP, CategoryISTP, CategoryISFP:
		return GroupRealists
	case CategoryESTJ, CategoryESFJ, CategoryISTJ, CategoryISFJ:
		return GroupGuardians
	case CategoryENTJ, CategoryENTP, CategoryINTJ, CategoryINTP:
		return GroupRationals
	case CategoryENFJ, CategoryENFP, CategoryINFJ, CategoryINFP:
		return GroupIdealists
	default:
		return GroupUnspecified
	}
}

// Categories returns all sixteen categories in declaration order.
func Categories() []Category {
	return []Category{
		CategoryESTP, CategoryESFP, CategoryISTP, CategoryISFP,
		CategoryESTJ, CategoryESFJ, CategoryISTJ, CategoryISFJ,
		CategoryENTJ, CategoryENTP, CategoryINTJ, CategoryINTP,
		CategoryENFJ, CategoryENFP, CategoryINFJ, CategoryINFP,
	}
}
