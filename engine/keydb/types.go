// Package keydb holds the hand-curated key-programming dataset: per make,
// model name to an ordered list of year-range buckets, each carrying one
// configuration record.
//
// The dataset is loaded once from flat JSON files and is read-only
// afterwards, so a *Database is safe for concurrent use.
package keydb

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Text is a lenient text field. Strings are kept verbatim, booleans render
// as Yes/No, numbers keep their literal form and null counts as absent.
type Text struct {
	Value string
	Set   bool
}

// T is shorthand for a present Text value.
func T(s string) Text { return Text{Value: s, Set: true} }

// Or returns the value, or def when the field was absent.
func (t Text) Or(def string) string {
	if !t.Set {
		return def
	}
	return t.Value
}

func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case nil:
		*t = Text{}
	case string:
		*t = T(x)
	case bool:
		if x {
			*t = T("Yes")
		} else {
			*t = T("No")
		}
	case float64:
		*t = T(string(b))
	default:
		var buf bytes.Buffer
		if err := json.Compact(&buf, b); err != nil {
			return err
		}
		*t = T(buf.String())
	}
	return nil
}

func (t Text) MarshalJSON() ([]byte, error) {
	if !t.Set {
		return []byte("null"), nil
	}
	return json.Marshal(t.Value)
}

// Flag is a truthy field: true, a non-empty string, a non-zero number or a
// non-empty collection.
type Flag bool

func (f *Flag) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = Flag(truthy(v))
	return nil
}

func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	}
	return false
}

// ToolFlag is a tool-support flag that is either a boolean or a qualifier
// string such as "Limited" or "Verify" meaning partial or uncertain support.
type ToolFlag struct {
	Supported bool
	Qualifier string
}

func (f *ToolFlag) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case bool:
		*f = ToolFlag{Supported: x}
	case string:
		*f = ToolFlag{Qualifier: x}
	case float64:
		// 1 compares equal to true in the sheets the data is curated from.
		*f = ToolFlag{Supported: x == 1}
	default:
		*f = ToolFlag{}
	}
	return nil
}

func (f ToolFlag) MarshalJSON() ([]byte, error) {
	if f.Qualifier != "" {
		return json.Marshal(f.Qualifier)
	}
	return []byte(strconv.FormatBool(f.Supported)), nil
}

// EEPROMInfo describes the immobilizer memory and whether a backup is needed.
type EEPROMInfo struct {
	ChipType       Text `json:"chip_type"`
	BackupMethod   Text `json:"backup_method"`
	BackupRequired Flag `json:"backup_required"`
	Warning        Text `json:"warning"`
}

// ToolSupport tracks Xhorse MLB tool / MQB adapter coverage.
type ToolSupport struct {
	MLBTool         ToolFlag `json:"mlb_tool"`
	MQBAdapter      ToolFlag `json:"mqb_adapter"`
	MLBNotes        Text     `json:"mlb_notes"`
	AdapterNotes    Text     `json:"adapter_notes"`
	Notes           Text     `json:"notes"`
	Workflow        Text     `json:"workflow"`
	RecommendedTool Text     `json:"recommended_tool"`
}

// ConfigRecord is the configuration stored under one year-range bucket.
type ConfigRecord struct {
	Platform      Text            `json:"platform"`
	Immobilizer   Text            `json:"immobilizer"`
	KeyType       Text            `json:"key_type"`
	KeyBlade      Text            `json:"key_blade"`
	RiskLevel     Text            `json:"risk_level"`
	AKLSupported  Text            `json:"akl_supported"`
	Notes         Text            `json:"notes"`
	Programming   map[string]Text `json:"programming"`
	ModuleRemoval map[string]Flag `json:"module_removal"`
	EEPROM        EEPROMInfo      `json:"eeprom_info"`
	Tools         ToolSupport     `json:"xhorse_tool_support"`
}

// Bucket is one "START-END" entry of a model. Err is set when either the
// range key or the record failed to parse; such buckets never match.
type Bucket struct {
	Range  string
	Start  int
	End    int
	Record ConfigRecord
	Err    error
}

// Valid reports whether the bucket can take part in resolution.
func (b Bucket) Valid() bool { return b.Err == nil }

// Contains reports whether year falls inside the inclusive range.
func (b Bucket) Contains(year int) bool {
	return b.Valid() && b.Start <= year && year <= b.End
}

// Model is a model name with its buckets in file order.
type Model struct {
	Name    string
	Buckets []Bucket
}
