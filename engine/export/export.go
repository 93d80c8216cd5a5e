// Package export writes the key database to an Excel workbook: one sheet per
// make with a row per model year range, and a Stats sheet.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/WessleyAI/keyintel/engine/domain"
	"github.com/WessleyAI/keyintel/engine/keydb"
	"github.com/WessleyAI/keyintel/engine/report"
	"github.com/WessleyAI/keyintel/engine/resolver"
	"github.com/WessleyAI/keyintel/pkg/fn"
)

// StatsSheet is the name of the summary sheet.
const StatsSheet = "Stats"

// Header is the column layout of every make sheet.
var Header = append([]string{
	"Model", "Year Range", "Platform", "Immobilizer", "Key Type", "Key Blade",
	"Risk Level", "AKL Supported", "EEPROM Chip", "Backup Method", "Backup Required",
	"MLB Tool", "MQB Adapter", "Recommended Tool", "Notes",
}, fn.Map(domain.KeyStatuses, func(ks domain.KeyStatus) string {
	return "Programming (" + ks.Label() + ")"
})...)

// StatsHeader is the column layout of the Stats sheet.
var StatsHeader = []string{"Make", "Models", "Buckets", "Overlaps", "Other Issues"}

// Row flattens one valid bucket of a model into a make-sheet row.
func Row(model string, b keydb.Bucket) []any {
	r := resolver.Flatten(b, domain.KeyStatusHasKey)
	backup := "No"
	if r.BackupRequired {
		backup = "Yes"
	}
	row := []any{
		model, r.YearRange, r.Platform, r.Immobilizer, r.KeyType, r.KeyBlade,
		r.RiskLevel, r.AKLSupported, r.EEPROMChip, r.BackupMethod, backup,
		report.MLBSupport(r.MLBTool).String(), report.MQBSupport(r.MQBAdapter).String(),
		r.RecommendedTool, r.Notes,
	}
	for _, ks := range domain.KeyStatuses {
		row = append(row, b.Record.Programming[string(ks)].Or(resolver.Unknown))
	}
	return row
}

// Write renders db as an .xlsx workbook to w.
func Write(db *keydb.Database, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("export: header style: %w", err)
	}

	issues := db.Check()
	for i, m := range domain.SupportedMakes {
		sheet := string(m)
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
				return fmt.Errorf("export: rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("export: new sheet %s: %w", sheet, err)
		}
		if err := writeMake(f, sheet, db, m, bold); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(StatsSheet); err != nil {
		return fmt.Errorf("export: new sheet %s: %w", StatsSheet, err)
	}
	if err := writeRow(f, StatsSheet, 1, fn.Map(StatsHeader, func(s string) any { return s })); err != nil {
		return err
	}
	if err := f.SetRowStyle(StatsSheet, 1, 1, bold); err != nil {
		return fmt.Errorf("export: style %s: %w", StatsSheet, err)
	}
	for i, st := range db.Stats() {
		overlaps, other := 0, 0
		for _, is := range issues {
			if is.Make != st.Make {
				continue
			}
			if is.Kind == keydb.IssueOverlap {
				overlaps++
			} else {
				other++
			}
		}
		row := []any{string(st.Make), st.Models, st.Buckets, overlaps, other}
		if err := writeRow(f, StatsSheet, i+2, row); err != nil {
			return err
		}
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("export: write workbook: %w", err)
	}
	return nil
}

func writeMake(f *excelize.File, sheet string, db *keydb.Database, m domain.Make, style int) error {
	if err := writeRow(f, sheet, 1, fn.Map(Header, func(s string) any { return s })); err != nil {
		return err
	}
	if err := f.SetRowStyle(sheet, 1, 1, style); err != nil {
		return fmt.Errorf("export: style %s: %w", sheet, err)
	}
	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("export: freeze %s: %w", sheet, err)
	}

	ds, _ := db.Dataset(m)
	n := 2
	for _, name := range ds.Models() {
		mod, _ := ds.Model(name)
		for _, b := range mod.Buckets {
			if !b.Valid() {
				continue
			}
			if err := writeRow(f, sheet, n, Row(name, b)); err != nil {
				return err
			}
			n++
		}
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("export: cell: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("export: %s row %d: %w", sheet, row, err)
	}
	return nil
}
