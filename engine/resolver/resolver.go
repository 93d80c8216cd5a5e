// Package resolver maps a vehicle selection onto one flattened configuration
// record of the key database.
//
// Resolution walks the model's year-range buckets in file order and stops at
// the first bucket whose inclusive range contains the year. Malformed buckets
// are skipped. Overlapping ranges are not an error here; keydb.Check reports
// them.
package resolver

import (
	"github.com/WessleyAI/keyintel/engine/domain"
	"github.com/WessleyAI/keyintel/engine/keydb"
	"github.com/WessleyAI/keyintel/pkg/fn"
)

// Defaults substituted for absent fields.
const (
	Unknown             = "Unknown"
	DefaultEEPROMChip   = "N/A"
	DefaultBackupMethod = "Standard OBD backup"
	DefaultNotes        = "No additional notes"
	NoDataMessage       = "No data available for this vehicle configuration."
	ModuleRemovalYes    = "Yes"
	ModuleRemovalNo     = "No"
)

// Result is the flattened projection of one configuration record for one
// key status. It is a value; callers may copy it freely.
type Result struct {
	Platform        string         `json:"platform"`
	Immobilizer     string         `json:"immobilizer"`
	KeyType         string         `json:"key_type"`
	KeyBlade        string         `json:"key_blade"`
	Programming     string         `json:"programming"`
	ModuleRemoval   string         `json:"module_removal"`
	AKLSupported    string         `json:"akl_supported"`
	RiskLevel       string         `json:"risk_level"`
	EEPROMChip      string         `json:"eeprom_chip"`
	BackupMethod    string         `json:"backup_method"`
	BackupRequired  bool           `json:"backup_required"`
	BackupWarning   string         `json:"backup_warning"`
	Notes           string         `json:"notes"`
	YearRange       string         `json:"year_range"`
	MLBTool         keydb.ToolFlag `json:"mlb_tool"`
	MQBAdapter      keydb.ToolFlag `json:"mqb_adapter"`
	XhorseNotes     string         `json:"xhorse_notes"`
	XhorseWorkflow  string         `json:"xhorse_workflow"`
	RecommendedTool string         `json:"recommended_tool"`
}

// Miss explains why a selection did not resolve.
type Miss int

const (
	Hit Miss = iota
	MissUnknownMake
	MissUnknownModel
	MissNoBuckets
	MissYearOutOfRange
)

func (m Miss) String() string {
	switch m {
	case Hit:
		return "hit"
	case MissUnknownMake:
		return "unknown_make"
	case MissUnknownModel:
		return "unknown_model"
	case MissNoBuckets:
		return "no_buckets"
	case MissYearOutOfRange:
		return "year_out_of_range"
	}
	return "unknown"
}

// Resolver resolves selections against a loaded database.
type Resolver struct {
	db *keydb.Database
}

// New creates a Resolver over db.
func New(db *keydb.Database) *Resolver {
	return &Resolver{db: db}
}

// Database returns the underlying database.
func (r *Resolver) Database() *keydb.Database { return r.db }

// Resolve returns the flattened record for sel, or false when no bucket of
// the model contains the year.
func (r *Resolver) Resolve(sel domain.Selection) (Result, bool) {
	b, miss := r.match(sel)
	if miss != Hit {
		return Result{}, false
	}
	return Flatten(b, sel.KeyStatus), true
}

// Explain reports why sel does or does not resolve.
func (r *Resolver) Explain(sel domain.Selection) Miss {
	_, miss := r.match(sel)
	return miss
}

func (r *Resolver) match(sel domain.Selection) (keydb.Bucket, Miss) {
	ds, ok := r.db.Dataset(sel.Make)
	if !ok {
		return keydb.Bucket{}, MissUnknownMake
	}
	model, ok := ds.Model(sel.Model)
	if !ok {
		return keydb.Bucket{}, MissUnknownModel
	}
	if len(model.Buckets) == 0 {
		return keydb.Bucket{}, MissNoBuckets
	}
	b, ok := fn.Find(model.Buckets, func(b keydb.Bucket) bool { return b.Contains(sel.Year) })
	if !ok {
		return keydb.Bucket{}, MissYearOutOfRange
	}
	return b, Hit
}

// Flatten projects a bucket's record for one key status, substituting
// defaults for absent fields.
func Flatten(b keydb.Bucket, ks domain.KeyStatus) Result {
	rec := b.Record
	tools := rec.Tools

	removal := ModuleRemovalNo
	if rec.ModuleRemoval[string(ks)] {
		removal = ModuleRemovalYes
	}

	return Result{
		Platform:        rec.Platform.Or(Unknown),
		Immobilizer:     rec.Immobilizer.Or(Unknown),
		KeyType:         rec.KeyType.Or(Unknown),
		KeyBlade:        rec.KeyBlade.Or(Unknown),
		Programming:     rec.Programming[string(ks)].Or(Unknown),
		ModuleRemoval:   removal,
		AKLSupported:    rec.AKLSupported.Or(Unknown),
		RiskLevel:       rec.RiskLevel.Or(Unknown),
		EEPROMChip:      rec.EEPROM.ChipType.Or(DefaultEEPROMChip),
		BackupMethod:    rec.EEPROM.BackupMethod.Or(DefaultBackupMethod),
		BackupRequired:  bool(rec.EEPROM.BackupRequired),
		BackupWarning:   rec.EEPROM.Warning.Or(""),
		Notes:           rec.Notes.Or(DefaultNotes),
		YearRange:       b.Range,
		MLBTool:         tools.MLBTool,
		MQBAdapter:      tools.MQBAdapter,
		XhorseNotes:     firstPresent(tools.MLBNotes, tools.AdapterNotes, tools.Notes),
		XhorseWorkflow:  tools.Workflow.Or(""),
		RecommendedTool: tools.RecommendedTool.Or(""),
	}
}

// firstPresent returns the first field that is set, even when its value is
// empty, so a blank model-specific note hides the generic one.
func firstPresent(fields ...keydb.Text) string {
	t, _ := fn.Find(fields, func(t keydb.Text) bool { return t.Set })
	return t.Value
}
