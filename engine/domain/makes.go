package domain

import "strings"

// Make is a supported manufacturer. The value is the label used as the
// top-level key of the manufacturer's dataset file.
type Make string

const (
	MakeBMW        Make = "BMW"
	MakeMercedes   Make = "Mercedes-Benz"
	MakeAudi       Make = "Audi"
	MakeVolkswagen Make = "Volkswagen"
)

// SupportedMakes lists the manufacturers in presentation order.
var SupportedMakes = []Make{MakeBMW, MakeMercedes, MakeAudi, MakeVolkswagen}

// dataFiles maps each make to its dataset file name inside the data directory.
var dataFiles = map[Make]string{
	MakeBMW:        "bmw.json",
	MakeMercedes:   "benz.json",
	MakeAudi:       "audi.json",
	MakeVolkswagen: "vw.json",
}

// makeAliases maps abbreviations/nicknames to canonical makes.
var makeAliases = map[string]Make{
	"bmw":           MakeBMW,
	"merc":          MakeMercedes,
	"benz":          MakeMercedes,
	"mercedes":      MakeMercedes,
	"mercedes-benz": MakeMercedes,
	"mercedes benz": MakeMercedes,
	"audi":          MakeAudi,
	"vw":            MakeVolkswagen,
	"volkswagen":    MakeVolkswagen,
}

// DataFile returns the dataset file name for m, or "" if m is unsupported.
func (m Make) DataFile() string { return dataFiles[m] }

// Valid reports whether m is a supported make.
func (m Make) Valid() bool {
	_, ok := dataFiles[m]
	return ok
}

// ParseMake resolves a canonical make or one of its aliases.
func ParseMake(s string) (Make, error) {
	if m, ok := makeAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return m, nil
	}
	return "", NewValidationError("make", s, ErrUnsupportedMake)
}

// MinModelYear and MaxModelYear bound the year picker of the presentation
// layers. The resolver itself accepts any year.
const (
	MinModelYear = 2005
	MaxModelYear = 2026
)

// Years returns the selectable years, newest first.
func Years() []int {
	out := make([]int, 0, MaxModelYear-MinModelYear+1)
	for y := MaxModelYear; y >= MinModelYear; y-- {
		out = append(out, y)
	}
	return out
}
