package keydb

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WessleyAI/keyintel/engine/domain"
)

const bmwFixture = `{
  "BMW": {
    "X5": {
      "2019-2023": {"immobilizer": "BDC2", "risk_level": "Very High"},
      "2007-2013": {"immobilizer": "CAS3", "risk_level": "Medium"},
      "2014-2018": {"immobilizer": "FEM", "risk_level": "High"}
    },
    "3 Series": {
      "2015-2018": {
        "immobilizer": "FEM/BDC",
        "risk_level": "High",
        "programming": {"has_key": "OBD programming"},
        "module_removal": {"has_key": false, "akl": true}
      }
    },
    "1 Series": {
      "abc-def": {"immobilizer": "bogus"},
      "2004-2011": {"immobilizer": "CAS2"},
      "2010-2012": {"immobilizer": "CAS3"},
      "2012-2011": {"immobilizer": "inverted"}
    },
    "M2": "not an object",
    "i3": {}
  }
}`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestParse_PreservesBucketOrder(t *testing.T) {
	ds, err := Parse(domain.MakeBMW, []byte(bmwFixture))
	require.NoError(t, err)

	x5, ok := ds.Model("X5")
	require.True(t, ok)
	ranges := make([]string, 0, len(x5.Buckets))
	for _, b := range x5.Buckets {
		ranges = append(ranges, b.Range)
	}
	assert.Equal(t, []string{"2019-2023", "2007-2013", "2014-2018"}, ranges)
}

func TestParse_RecordFields(t *testing.T) {
	ds, err := Parse(domain.MakeBMW, []byte(bmwFixture))
	require.NoError(t, err)

	m, ok := ds.Model("3 Series")
	require.True(t, ok)
	require.Len(t, m.Buckets, 1)

	b := m.Buckets[0]
	require.True(t, b.Valid())
	assert.Equal(t, 2015, b.Start)
	assert.Equal(t, 2018, b.End)
	assert.Equal(t, "FEM/BDC", b.Record.Immobilizer.Or("Unknown"))
	assert.Equal(t, "Unknown", b.Record.Platform.Or("Unknown"))
	assert.Equal(t, "OBD programming", b.Record.Programming["has_key"].Value)
	assert.False(t, bool(b.Record.ModuleRemoval["has_key"]))
	assert.True(t, bool(b.Record.ModuleRemoval["akl"]))
}

func TestParse_MalformedPieces(t *testing.T) {
	ds, err := Parse(domain.MakeBMW, []byte(bmwFixture))
	require.NoError(t, err)

	_, ok := ds.Model("M2")
	assert.False(t, ok, "non-object model is skipped")

	one, ok := ds.Model("1 Series")
	require.True(t, ok)
	require.Len(t, one.Buckets, 4)
	assert.False(t, one.Buckets[0].Valid())
	assert.True(t, one.Buckets[1].Valid())

	i3, ok := ds.Model("i3")
	require.True(t, ok)
	assert.Empty(t, i3.Buckets)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse(domain.MakeAudi, []byte(`{"BMW": {}}`))
	assert.ErrorIs(t, err, ErrMakeMissing)

	ds, err := Parse(domain.MakeAudi, []byte(`{"Audi": `))
	assert.Error(t, err)
	assert.Equal(t, 0, ds.Len())

	_, err = Parse(domain.MakeAudi, []byte(`["Audi"]`))
	assert.Error(t, err)
}

func TestParse_DuplicateKeysKeepFirstPosition(t *testing.T) {
	data := `{"Audi": {"A4": {"2008-2012": {"immobilizer": "old"}, "2013-2016": {}, "2008-2012": {"immobilizer": "new"}}}}`
	ds, err := Parse(domain.MakeAudi, []byte(data))
	require.NoError(t, err)

	a4, _ := ds.Model("A4")
	require.Len(t, a4.Buckets, 2)
	assert.Equal(t, "2008-2012", a4.Buckets[0].Range)
	assert.Equal(t, "new", a4.Buckets[0].Record.Immobilizer.Value)
}

func TestParseRange(t *testing.T) {
	cases := []struct {
		key        string
		start, end int
		ok         bool
	}{
		{"2015-2018", 2015, 2018, true},
		{" 2015 - 2018 ", 2015, 2018, true},
		{"2015", 0, 0, false},
		{"abc-def", 0, 0, false},
		{"2015-2018-2020", 0, 0, false},
		{"", 0, 0, false},
	}
	for _, tc := range cases {
		start, end, err := ParseRange(tc.key)
		if !tc.ok {
			assert.Error(t, err, tc.key)
			continue
		}
		require.NoError(t, err, tc.key)
		assert.Equal(t, tc.start, start)
		assert.Equal(t, tc.end, end)
	}
}

func TestLenientFields(t *testing.T) {
	data := `{"VW": {}, "Volkswagen": {"Golf": {"2013-2020": {
		"platform": null,
		"akl_supported": true,
		"key_blade": 39,
		"notes": ["a", "b"],
		"eeprom_info": {"backup_required": "yes"},
		"xhorse_tool_support": {"mlb_tool": "Verify", "mqb_adapter": true},
		"module_removal": {"akl": 1, "one_key": ""}
	}}}}`
	ds, err := Parse(domain.MakeVolkswagen, []byte(data))
	require.NoError(t, err)

	golf, _ := ds.Model("Golf")
	rec := golf.Buckets[0].Record
	assert.False(t, rec.Platform.Set)
	assert.Equal(t, "Yes", rec.AKLSupported.Value)
	assert.Equal(t, "39", rec.KeyBlade.Value)
	assert.Equal(t, `["a","b"]`, rec.Notes.Value)
	assert.True(t, bool(rec.EEPROM.BackupRequired))
	assert.Equal(t, ToolFlag{Qualifier: "Verify"}, rec.Tools.MLBTool)
	assert.Equal(t, ToolFlag{Supported: true}, rec.Tools.MQBAdapter)
	assert.True(t, bool(rec.ModuleRemoval["akl"]))
	assert.False(t, bool(rec.ModuleRemoval["one_key"]))
}

func TestNonObjectRecordIsMalformed(t *testing.T) {
	data := `{"Audi": {"Q5": {"2009-2016": "see notes", "2017-2020": null, "2021-2024": {}}}}`
	ds, err := Parse(domain.MakeAudi, []byte(data))
	require.NoError(t, err)

	q5, _ := ds.Model("Q5")
	assert.False(t, q5.Buckets[0].Valid())
	assert.False(t, q5.Buckets[1].Valid())
	assert.True(t, q5.Buckets[2].Valid())
}

func TestModelsSorted(t *testing.T) {
	ds, err := Parse(domain.MakeBMW, []byte(bmwFixture))
	require.NoError(t, err)
	db := NewDatabase(ds)

	assert.Equal(t, []string{"1 Series", "3 Series", "X5", "i3"}, db.Models(domain.MakeBMW))
	assert.Empty(t, db.Models(domain.MakeAudi))
	assert.Empty(t, db.Models("Lada"))
}

func TestCheck(t *testing.T) {
	ds, err := Parse(domain.MakeBMW, []byte(bmwFixture))
	require.NoError(t, err)
	issues := NewDatabase(ds).Check()

	kinds := map[IssueKind][]Issue{}
	for _, is := range issues {
		kinds[is.Kind] = append(kinds[is.Kind], is)
	}
	require.Len(t, kinds[IssueMalformedModel], 1)
	assert.Equal(t, "M2", kinds[IssueMalformedModel][0].Model)

	require.Len(t, kinds[IssueMalformedBucket], 1)
	assert.Equal(t, []string{"abc-def"}, kinds[IssueMalformedBucket][0].Ranges)

	require.Len(t, kinds[IssueInvertedRange], 1)
	assert.Equal(t, []string{"2012-2011"}, kinds[IssueInvertedRange][0].Ranges)

	require.Len(t, kinds[IssueOverlap], 1)
	ov := kinds[IssueOverlap][0]
	assert.Equal(t, "1 Series", ov.Model)
	assert.Equal(t, []string{"2004-2011", "2010-2012"}, ov.Ranges)
	assert.Contains(t, ov.String(), "2004-2011 wins for 2010-2011")
}

func TestStats(t *testing.T) {
	ds, err := Parse(domain.MakeBMW, []byte(bmwFixture))
	require.NoError(t, err)
	stats := NewDatabase(ds).Stats()

	require.Len(t, stats, len(domain.SupportedMakes))
	assert.Equal(t, MakeStats{Make: domain.MakeBMW, Models: 4, Buckets: 8}, stats[0])
	assert.Equal(t, MakeStats{Make: domain.MakeMercedes}, stats[1])
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bmw.json"), []byte(bmwFixture), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "audi.json"), []byte(`{not json`), 0o644))

	db := Load(dir, quietLogger())

	assert.Len(t, db.Models(domain.MakeBMW), 4)
	assert.Empty(t, db.Models(domain.MakeAudi), "malformed file degrades to empty")
	assert.Empty(t, db.Models(domain.MakeMercedes), "missing file degrades to empty")
}

func TestLoadFile_NilLogger(t *testing.T) {
	ds := LoadFile(filepath.Join(t.TempDir(), "missing.json"), domain.MakeAudi, nil)
	assert.Equal(t, 0, ds.Len())
	assert.Equal(t, domain.MakeAudi, ds.Make)
}
