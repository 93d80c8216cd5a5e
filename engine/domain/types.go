// Package domain defines the core types, constants, and validation for the
// keyintel lookup engine. It acts as the validation gate in front of the
// resolver for both the CLI and the HTTP API.
package domain

import (
	"fmt"
	"strings"
)

// KeyStatus is the customer's key-possession state.
type KeyStatus string

const (
	KeyStatusHasKey KeyStatus = "has_key"
	KeyStatusOneKey KeyStatus = "one_key"
	KeyStatusAKL    KeyStatus = "akl"
)

// KeyStatuses lists the statuses in presentation order.
var KeyStatuses = []KeyStatus{KeyStatusHasKey, KeyStatusOneKey, KeyStatusAKL}

var keyStatusLabels = map[KeyStatus]string{
	KeyStatusHasKey: "Has Working Key",
	KeyStatusOneKey: "Only 1 Key",
	KeyStatusAKL:    "AKL (All Keys Lost)",
}

// Label returns the human-facing name of the status.
func (s KeyStatus) Label() string {
	if l, ok := keyStatusLabels[s]; ok {
		return l
	}
	return string(s)
}

// Valid reports whether s is one of the three known statuses.
func (s KeyStatus) Valid() bool {
	_, ok := keyStatusLabels[s]
	return ok
}

// ParseKeyStatus accepts either the wire code ("akl") or the label
// ("AKL (All Keys Lost)"), case-insensitively.
func ParseKeyStatus(s string) (KeyStatus, error) {
	s = strings.TrimSpace(s)
	for _, ks := range KeyStatuses {
		if strings.EqualFold(s, string(ks)) || strings.EqualFold(s, ks.Label()) {
			return ks, nil
		}
	}
	return "", NewValidationError("key_status", s, ErrInvalidKeyStatus)
}

// ImageType selects which reference photo is shown for a vehicle.
type ImageType string

const (
	ImageModule ImageType = "Module"
	ImageKey    ImageType = "Key"
)

// ParseImageType is case-insensitive; "bcm" and "fob" are accepted aliases.
func ParseImageType(s string) (ImageType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "module", "bcm", "module/bcm":
		return ImageModule, nil
	case "key", "fob", "key/fob":
		return ImageKey, nil
	}
	return "", NewValidationError("image_type", s, ErrInvalidImageType)
}

// Selection is the immutable "current selection" of a lookup: every change
// of input produces a new Selection and a fresh resolver call.
type Selection struct {
	Make      Make      `json:"make"`
	Model     string    `json:"model"`
	Year      int       `json:"year"`
	KeyStatus KeyStatus `json:"key_status"`
}

func (s Selection) String() string {
	return fmt.Sprintf("%s %s %d (%s)", s.Make, s.Model, s.Year, s.KeyStatus)
}

// WithKeyStatus returns a copy of s with a different key status.
func (s Selection) WithKeyStatus(ks KeyStatus) Selection {
	s.KeyStatus = ks
	return s
}
