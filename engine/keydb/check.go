package keydb

import (
	"fmt"

	"github.com/WessleyAI/keyintel/engine/domain"
)

// IssueKind classifies a data-integrity finding.
type IssueKind string

const (
	IssueOverlap         IssueKind = "overlap"
	IssueInvertedRange   IssueKind = "inverted_range"
	IssueMalformedBucket IssueKind = "malformed_bucket"
	IssueMalformedModel  IssueKind = "malformed_model"
)

// Issue is one data-integrity finding. Issues never change resolution:
// overlapping ranges still resolve to the first bucket in file order.
type Issue struct {
	Make   domain.Make `json:"make"`
	Model  string      `json:"model"`
	Kind   IssueKind   `json:"kind"`
	Ranges []string    `json:"ranges,omitempty"`
	Detail string      `json:"detail,omitempty"`
}

func (i Issue) String() string {
	s := fmt.Sprintf("%s %s: %s", i.Make, i.Model, i.Kind)
	if len(i.Ranges) > 0 {
		s += fmt.Sprintf(" %v", i.Ranges)
	}
	if i.Detail != "" {
		s += ": " + i.Detail
	}
	return s
}

// Check lists malformed models and buckets, inverted ranges and
// overlapping bucket pairs for every make.
func (db *Database) Check() []Issue {
	var out []Issue
	for _, m := range domain.SupportedMakes {
		ds, ok := db.sets[m]
		if !ok {
			continue
		}
		out = append(out, ds.skipped...)
		ds.each(func(mod *Model) {
			out = append(out, checkModel(m, mod)...)
		})
	}
	return out
}

func checkModel(m domain.Make, mod *Model) []Issue {
	var out []Issue
	for i, a := range mod.Buckets {
		if !a.Valid() {
			out = append(out, Issue{
				Make: m, Model: mod.Name, Kind: IssueMalformedBucket,
				Ranges: []string{a.Range}, Detail: a.Err.Error(),
			})
			continue
		}
		if a.Start > a.End {
			out = append(out, Issue{
				Make: m, Model: mod.Name, Kind: IssueInvertedRange,
				Ranges: []string{a.Range},
			})
			continue
		}
		for _, b := range mod.Buckets[i+1:] {
			if !b.Valid() || b.Start > b.End {
				continue
			}
			if a.Start <= b.End && b.Start <= a.End {
				out = append(out, Issue{
					Make: m, Model: mod.Name, Kind: IssueOverlap,
					Ranges: []string{a.Range, b.Range},
					Detail: fmt.Sprintf("%s wins for %d-%d", a.Range, max(a.Start, b.Start), min(a.End, b.End)),
				})
			}
		}
	}
	return out
}
