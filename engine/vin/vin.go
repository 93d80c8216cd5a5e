// Package vin decodes the manufacturer and model year of a 17-character VIN
// from static tables. The check digit (position 9) is not verified.
package vin

import (
	"fmt"
	"strings"

	"github.com/WessleyAI/keyintel/engine/domain"
)

// Length is the VIN length.
const Length = 17

// Reason categorises a decode failure.
type Reason string

const (
	ReasonNone      Reason = ""
	ReasonEmpty     Reason = "empty"
	ReasonLength    Reason = "length"
	ReasonForbidden Reason = "forbidden_chars"
	ReasonNotAlnum  Reason = "not_alphanumeric"
)

// UnknownManufacturer is reported for a valid VIN with an unmapped WMI.
const UnknownManufacturer = "Unknown"

// Result is the outcome of Decode. Year and Make are nil when the VIN is
// valid but the code is not in the tables.
type Result struct {
	VIN          string       `json:"vin"`
	Valid        bool         `json:"valid"`
	Reason       Reason       `json:"reason,omitempty"`
	Message      string       `json:"message"`
	Manufacturer string       `json:"manufacturer,omitempty"`
	Year         *int         `json:"year,omitempty"`
	Make         *domain.Make `json:"make,omitempty"`
}

type wmiInfo struct {
	label string
	make_ domain.Make
}

// wmiTable maps World Manufacturer Identifiers to a label and make.
var wmiTable = map[string]wmiInfo{
	"WBA": {"BMW (Germany)", domain.MakeBMW},
	"WBS": {"BMW M", domain.MakeBMW},
	"WBY": {"BMW i", domain.MakeBMW},
	"4US": {"BMW (USA)", domain.MakeBMW},
	"5UX": {"BMW X (USA)", domain.MakeBMW},
	"5YM": {"BMW M (USA)", domain.MakeBMW},

	"WDB": {"Mercedes-Benz", domain.MakeMercedes},
	"WDC": {"Mercedes SUV", domain.MakeMercedes},
	"WDD": {"Mercedes", domain.MakeMercedes},
	"4JG": {"Mercedes (USA)", domain.MakeMercedes},
	"55S": {"AMG", domain.MakeMercedes},

	"WAU": {"Audi", domain.MakeAudi},
	"WUA": {"Audi Quattro", domain.MakeAudi},
	"TRU": {"Audi (Hungary)", domain.MakeAudi},

	"WVW": {"Volkswagen (Germany)", domain.MakeVolkswagen},
	"WVG": {"VW SUV (Germany)", domain.MakeVolkswagen},
	"3VW": {"VW (Mexico)", domain.MakeVolkswagen},
	"1VW": {"VW (USA)", domain.MakeVolkswagen},
	"9BW": {"VW (Brazil)", domain.MakeVolkswagen},
	"AAV": {"VW (Argentina)", domain.MakeVolkswagen},
}

// yearCodes maps position-10 codes to model years (2010-2026 cycle).
var yearCodes = map[byte]int{
	'A': 2010, 'B': 2011, 'C': 2012, 'D': 2013, 'E': 2014,
	'F': 2015, 'G': 2016, 'H': 2017, 'J': 2018, 'K': 2019,
	'L': 2020, 'M': 2021, 'N': 2022, 'P': 2023, 'R': 2024,
	'S': 2025, 'T': 2026,
}

// Normalize trims and upper-cases a raw VIN.
func Normalize(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Decode validates and decodes raw. It never fails; an invalid VIN yields a
// Result with Valid=false and a descriptive Message.
func Decode(raw string) Result {
	v := Normalize(raw)
	res := Result{VIN: v}

	if v == "" {
		res.Reason = ReasonEmpty
		return res
	}
	if n := len([]rune(v)); n != Length {
		res.Reason = ReasonLength
		res.Message = fmt.Sprintf("Need %d chars (got %d)", Length, n)
		return res
	}
	var forbidden []string
	for _, c := range v {
		if c == 'I' || c == 'O' || c == 'Q' {
			forbidden = append(forbidden, string(c))
		}
	}
	if len(forbidden) > 0 {
		res.Reason = ReasonForbidden
		res.Message = "Invalid: " + strings.Join(forbidden, ", ")
		return res
	}
	for _, c := range v {
		if !isAlnum(c) {
			res.Reason = ReasonNotAlnum
			res.Message = "Must be alphanumeric"
			return res
		}
	}

	res.Valid = true
	res.Manufacturer = UnknownManufacturer
	if info, ok := wmiTable[v[:3]]; ok {
		res.Manufacturer = info.label
		m := info.make_
		res.Make = &m
	}
	if y, ok := yearCodes[v[9]]; ok {
		res.Year = &y
	}
	res.Message = "✓ " + res.Manufacturer
	return res
}

func isAlnum(c rune) bool {
	return (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// WMI returns the first three characters of a normalized VIN, or "".
func WMI(raw string) string {
	v := Normalize(raw)
	if len(v) < 3 {
		return ""
	}
	return v[:3]
}
