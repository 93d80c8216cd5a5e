package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/WessleyAI/keyintel/engine/domain"
	"github.com/WessleyAI/keyintel/engine/keydb"
	"github.com/WessleyAI/keyintel/engine/report"
	"github.com/WessleyAI/keyintel/engine/resolver"
	"github.com/WessleyAI/keyintel/engine/vin"
)

// printer writes human-readable output, coloured unless disabled or the
// process is not attached to a terminal.
type printer struct {
	w       io.Writer
	enabled bool
}

func newPrinter(w io.Writer, noColor bool) *printer {
	return &printer{w: w, enabled: !noColor && !color.NoColor}
}

func (a *app) printer() *printer { return newPrinter(a.stdout, a.noColor) }

// paint renders s with attrs when colour is enabled.
func (p *printer) paint(s string, attrs ...color.Attribute) string {
	c := color.New(attrs...)
	if p.enabled {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c.Sprint(s)
}

func (p *printer) printf(format string, args ...any) {
	fmt.Fprintf(p.w, format, args...)
}

func (p *printer) errorf(format string, args ...any) {
	fmt.Fprintln(p.w, p.paint(fmt.Sprintf(format, args...), color.FgRed, color.Bold))
}

func (p *printer) heading(s string) {
	fmt.Fprintln(p.w, p.paint(s, color.Bold, color.Underline))
}

func (p *printer) field(label, value string, attrs ...color.Attribute) {
	if len(attrs) > 0 {
		value = p.paint(value, attrs...)
	}
	fmt.Fprintf(p.w, "  %-16s %s\n", label+":", value)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func riskAttrs(level string) []color.Attribute {
	switch level {
	case "LOW":
		return []color.Attribute{color.FgGreen}
	case "MEDIUM":
		return []color.Attribute{color.FgYellow}
	case "HIGH":
		return []color.Attribute{color.FgHiRed}
	case "VERY HIGH":
		return []color.Attribute{color.FgRed, color.Bold}
	}
	return []color.Attribute{color.Faint}
}

func supportAttrs(s report.Support) []color.Attribute {
	switch s {
	case report.Supported:
		return []color.Attribute{color.FgGreen}
	case report.Partial:
		return []color.Attribute{color.FgYellow}
	}
	return []color.Attribute{color.FgRed}
}

func severityAttrs(s report.Severity) []color.Attribute {
	switch s {
	case report.SeverityCritical:
		return []color.Attribute{color.FgRed, color.Bold}
	case report.SeverityImportant:
		return []color.Attribute{color.FgYellow, color.Bold}
	}
	return []color.Attribute{color.FgCyan}
}

func indent(s string) string {
	return "  " + strings.ReplaceAll(s, "\n", "\n  ")
}

// card prints a resolved lookup.
func (p *printer) card(sel domain.Selection, c report.Card) {
	r := c.Result
	p.printf("%s  %s\n\n",
		p.paint(fmt.Sprintf("%s %s %d", sel.Make, sel.Model, sel.Year), color.Bold),
		p.paint(fmt.Sprintf("%s · %s", sel.KeyStatus.Label(), r.YearRange), color.Faint))

	p.heading("Vehicle")
	p.field("Platform", r.Platform)
	p.field("Immobilizer", r.Immobilizer)
	p.field("Key type", r.KeyType)
	p.field("Key blade", r.KeyBlade)
	p.printf("\n")

	p.heading("Programming")
	p.field("Procedure", r.Programming)
	removal := []color.Attribute{color.FgGreen}
	if r.ModuleRemoval == resolver.ModuleRemovalYes {
		removal = []color.Attribute{color.FgYellow}
	}
	p.field("Module removal", r.ModuleRemoval, removal...)
	p.field("AKL supported", r.AKLSupported, supportAttrs(report.AKLClass(r.AKLSupported))...)
	p.field("Risk", c.Risk.Level, riskAttrs(c.Risk.Level)...)
	p.printf("\n")

	p.heading("EEPROM")
	p.field("Chip", r.EEPROMChip)
	p.field("Backup method", r.BackupMethod)
	p.field("Backup", c.Quick.Backup)
	if r.BackupWarning != "" {
		p.field("Warning", r.BackupWarning, severityAttrs(c.Warning)...)
	}
	p.printf("\n")

	p.heading("Tool support")
	for _, l := range c.Tools {
		p.printf("  %s\n", p.paint(l.Text, supportAttrs(l.Support)...))
	}
	p.printf("\n")

	p.heading("Workflow")
	p.printf("%s\n\n", indent(c.Workflow))

	p.heading("Notes")
	p.printf("%s\n", indent(r.Notes))
}

// miss prints the single no-data message with the cause as a hint.
func (p *printer) miss(sel domain.Selection, m resolver.Miss) {
	p.printf("%s\n", p.paint(resolver.NoDataMessage, color.FgYellow))
	p.printf("%s\n", p.paint(fmt.Sprintf("(%s: %s)", sel, strings.ReplaceAll(m.String(), "_", " ")), color.Faint))
}

// vinResult prints a decoded VIN.
func (p *printer) vinResult(res vin.Result) {
	if !res.Valid {
		msg := res.Message
		if msg == "" {
			msg = "No VIN given"
		}
		p.printf("%s\n", p.paint(msg, color.FgRed))
		return
	}
	p.printf("%s\n", p.paint(res.Message, color.FgGreen))
	p.field("VIN", res.VIN)
	p.field("WMI", vin.WMI(res.VIN))
	if res.Make != nil {
		p.field("Make", string(*res.Make))
	} else {
		p.field("Make", "not supported", color.Faint)
	}
	if res.Year != nil {
		p.field("Model year", fmt.Sprint(*res.Year))
	} else {
		p.field("Model year", "unknown", color.Faint)
	}
}

// stats prints per-make dataset counts and the totals.
func (p *printer) stats(stats []keydb.MakeStats) {
	p.printf("%-16s %8s %8s\n", "MAKE", "MODELS", "RANGES")
	models, buckets := 0, 0
	for _, st := range stats {
		line := fmt.Sprintf("%-16s %8d %8d", st.Make, st.Models, st.Buckets)
		if st.Models == 0 {
			line = p.paint(line, color.Faint)
		}
		p.printf("%s\n", line)
		models += st.Models
		buckets += st.Buckets
	}
	p.printf("%s\n", p.paint(fmt.Sprintf("%-16s %8d %8d", "TOTAL", models, buckets), color.Bold))
}

// issues prints integrity findings grouped by make.
func (p *printer) issues(groups map[domain.Make][]keydb.Issue) {
	for _, m := range domain.SupportedMakes {
		list := groups[m]
		if len(list) == 0 {
			continue
		}
		p.heading(string(m))
		for _, is := range list {
			attrs := []color.Attribute{color.FgYellow}
			if is.Kind != keydb.IssueOverlap {
				attrs = []color.Attribute{color.FgRed}
			}
			p.printf("  %s\n", p.paint(is.String(), attrs...))
		}
	}
}
