package domain

import (
	"strconv"
	"strings"
)

// ValidateSelection checks that a selection is complete enough to resolve.
// It does not check that the model exists; an unknown model is a no-match,
// not an input error.
func ValidateSelection(s Selection) error {
	if !s.Make.Valid() {
		return NewValidationError("make", string(s.Make), ErrUnsupportedMake)
	}
	if strings.TrimSpace(s.Model) == "" {
		return NewValidationError("model", s.Model, ErrMissingModel)
	}
	if s.Year <= 0 {
		return NewValidationError("year", strconv.Itoa(s.Year), ErrInvalidYear)
	}
	if !s.KeyStatus.Valid() {
		return NewValidationError("key_status", string(s.KeyStatus), ErrInvalidKeyStatus)
	}
	return nil
}

// ParseSelection builds a Selection from raw form or flag values.
func ParseSelection(make_, model, year, keyStatus string) (Selection, error) {
	m, err := ParseMake(make_)
	if err != nil {
		return Selection{}, err
	}
	y, err := strconv.Atoi(strings.TrimSpace(year))
	if err != nil {
		return Selection{}, NewValidationError("year", year, ErrInvalidYear)
	}
	ks := KeyStatusHasKey
	if strings.TrimSpace(keyStatus) != "" {
		if ks, err = ParseKeyStatus(keyStatus); err != nil {
			return Selection{}, err
		}
	}
	s := Selection{Make: m, Model: strings.TrimSpace(model), Year: y, KeyStatus: ks}
	if err := ValidateSelection(s); err != nil {
		return Selection{}, err
	}
	return s, nil
}
