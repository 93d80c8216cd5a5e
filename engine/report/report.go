// Package report turns a resolver.Result into the human-readable pieces shown
// by the CLI and the API: tool-support lines, workflow text, the quick
// reference block and the risk/warning/AKL classifications.
package report

import (
	"fmt"
	"strings"

	"github.com/WessleyAI/keyintel/engine/keydb"
	"github.com/WessleyAI/keyintel/engine/resolver"
	"github.com/WessleyAI/keyintel/pkg/fn"
)

// Support is the state of one tool category.
type Support int

const (
	NotApplicable Support = iota
	Partial
	Supported
)

func (s Support) String() string {
	switch s {
	case Supported:
		return "supported"
	case Partial:
		return "partial"
	}
	return "not_applicable"
}

// ToolLine is one rendered tool-support entry.
type ToolLine struct {
	Tool    string  `json:"tool"`
	Support Support `json:"-"`
	State   string  `json:"state"`
	Text    string  `json:"text"`
}

// MLBSupport classifies the MLB tool flag: "Limited" and "Verify" are partial.
func MLBSupport(f keydb.ToolFlag) Support {
	switch {
	case f.Qualifier == "Limited" || f.Qualifier == "Verify":
		return Partial
	case f.Qualifier == "" && f.Supported:
		return Supported
	}
	return NotApplicable
}

// MQBSupport classifies the MQB adapter flag: only "Limited" is partial.
func MQBSupport(f keydb.ToolFlag) Support {
	switch {
	case f.Qualifier == "Limited":
		return Partial
	case f.Qualifier == "" && f.Supported:
		return Supported
	}
	return NotApplicable
}

func mlbLine(f keydb.ToolFlag) ToolLine {
	l := ToolLine{Tool: "mlb", Support: MLBSupport(f)}
	switch l.Support {
	case Supported:
		l.Text = "✅ MLB Tool (XDMLB0): SUPPORTED"
	case Partial:
		l.Text = "⚠️ MLB Tool: " + f.Qualifier
	default:
		l.Text = "❌ MLB Tool: Not applicable"
	}
	l.State = l.Support.String()
	return l
}

func mqbLine(f keydb.ToolFlag) ToolLine {
	l := ToolLine{Tool: "mqb", Support: MQBSupport(f)}
	switch l.Support {
	case Supported:
		l.Text = "✅ MQB Adapter (XDMQBAGL): SUPPORTED"
	case Partial:
		l.Text = "⚠️ MQB Adapter: Limited support"
	default:
		l.Text = "❌ MQB Adapter: Not applicable"
	}
	l.State = l.Support.String()
	return l
}

// ToolSupport renders the MLB and MQB lines, followed by the recommended
// tool when one is set.
func ToolSupport(r resolver.Result) []ToolLine {
	lines := []ToolLine{mlbLine(r.MLBTool), mqbLine(r.MQBAdapter)}
	if r.RecommendedTool != "" {
		lines = append(lines, ToolLine{
			Tool:    "recommended",
			Support: Supported,
			State:   Supported.String(),
			Text:    "🎯 Recommended: " + r.RecommendedTool,
		})
	}
	return lines
}

// ToolSupportText joins ToolSupport lines with newlines.
func ToolSupportText(r resolver.Result) string {
	return strings.Join(fn.Map(ToolSupport(r), func(l ToolLine) string { return l.Text }), "\n")
}

// DefaultWorkflow is shown when a record has neither tool notes nor workflow.
const DefaultWorkflow = "Standard procedures apply"

// Workflow combines the tool notes and the workflow steps.
func Workflow(r resolver.Result) string {
	parts := fn.Filter([]string{r.XhorseNotes, r.XhorseWorkflow}, func(s string) bool { return s != "" })
	if len(parts) == 0 {
		return DefaultWorkflow
	}
	return strings.Join(parts, "\n")
}

// QuickReference is the short summary shown beside the full result.
type QuickReference struct {
	Blade  string `json:"blade"`
	System string `json:"system"`
	EEPROM string `json:"eeprom"`
	Backup string `json:"backup"`
}

// Quick builds the quick-reference block.
func Quick(r resolver.Result) QuickReference {
	backup := "✓ Optional"
	if r.BackupRequired {
		backup = "⚠️ YES"
	}
	return QuickReference{Blade: r.KeyBlade, System: r.Immobilizer, EEPROM: r.EEPROMChip, Backup: backup}
}

func (q QuickReference) String() string {
	return fmt.Sprintf("Blade: %s\nSystem: %s\nEEPROM: %s\nBackup: %s", q.Blade, q.System, q.EEPROM, q.Backup)
}

// RiskGauge is the job-risk indicator.
type RiskGauge struct {
	Level string  `json:"level"`
	Value float64 `json:"value"`
}

// Risk maps the free-text risk level onto a gauge. "Very High" is checked
// before "High" since the latter is a substring.
func Risk(r resolver.Result) RiskGauge {
	lvl := r.RiskLevel
	switch {
	case strings.Contains(lvl, "Low"):
		return RiskGauge{Level: "LOW", Value: 0.25}
	case strings.Contains(lvl, "Medium"):
		return RiskGauge{Level: "MEDIUM", Value: 0.5}
	case strings.Contains(lvl, "Very High"):
		return RiskGauge{Level: "VERY HIGH", Value: 1.0}
	case strings.Contains(lvl, "High"):
		return RiskGauge{Level: "HIGH", Value: 0.75}
	}
	return RiskGauge{Level: "—", Value: 0}
}

// Severity grades the EEPROM backup warning.
type Severity string

const (
	SeverityNone      Severity = "none"
	SeverityCaution   Severity = "caution"
	SeverityImportant Severity = "important"
	SeverityCritical  Severity = "critical"
)

// WarningSeverity grades a backup warning by its leading keyword.
func WarningSeverity(warning string) Severity {
	switch {
	case warning == "":
		return SeverityNone
	case strings.Contains(warning, "CRITICAL"), strings.Contains(warning, "EXTREME"):
		return SeverityCritical
	case strings.Contains(warning, "IMPORTANT"):
		return SeverityImportant
	}
	return SeverityCaution
}

// AKLClass classifies the AKL-supported descriptor.
func AKLClass(v string) Support {
	switch {
	case v == "Yes":
		return Supported
	case strings.Contains(v, "Limited"), strings.Contains(v, "Very"):
		return Partial
	}
	return NotApplicable
}

// Card is the full presentation of one resolved lookup.
type Card struct {
	Result   resolver.Result `json:"result"`
	Tools    []ToolLine      `json:"tools"`
	Workflow string          `json:"workflow"`
	Quick    QuickReference  `json:"quick_reference"`
	Risk     RiskGauge       `json:"risk"`
	Warning  Severity        `json:"warning_severity"`
	AKL      string          `json:"akl_class"`
}

// Build assembles a Card from a result.
func Build(r resolver.Result) Card {
	return Card{
		Result:   r,
		Tools:    ToolSupport(r),
		Workflow: Workflow(r),
		Quick:    Quick(r),
		Risk:     Risk(r),
		Warning:  WarningSeverity(r.BackupWarning),
		AKL:      AKLClass(r.AKLSupported).String(),
	}
}
