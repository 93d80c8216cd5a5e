package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/WessleyAI/keyintel/engine/domain"
	"github.com/WessleyAI/keyintel/engine/keydb"
)

const bmw = `{"BMW": {
	"X5": {
		"2014-2018": {"platform": "F15", "immobilizer": "FEM", "risk_level": "Medium",
			"programming": {"has_key": "OBD add key", "akl": "Bench FEM"},
			"eeprom_info": {"backup_required": true},
			"xhorse_tool_support": {"mlb_tool": false, "mqb_adapter": "Limited"}},
		"2016-2017": {"immobilizer": "FEM"},
		"bogus": {}
	},
	"3 Series": {"2012-2018": {"immobilizer": "FEM/BDC"}}
}}`

func writeWorkbook(t *testing.T) *excelize.File {
	t.Helper()
	ds, err := keydb.Parse(domain.MakeBMW, []byte(bmw))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(keydb.NewDatabase(ds), &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestWrite_Sheets(t *testing.T) {
	f := writeWorkbook(t)
	assert.Equal(t, []string{"BMW", "Mercedes-Benz", "Audi", "Volkswagen", StatsSheet}, f.GetSheetList())
}

func TestWrite_MakeRows(t *testing.T) {
	f := writeWorkbook(t)
	rows, err := f.GetRows("BMW")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, Header, rows[0])

	// Models sorted, buckets in file order, malformed bucket left out.
	assert.Equal(t, []string{"3 Series", "2012-2018"}, rows[1][:2])
	assert.Equal(t, []string{"X5", "2014-2018", "F15", "FEM"}, rows[2][:4])
	assert.Equal(t, []string{"X5", "2016-2017"}, rows[3][:2])

	x5 := rows[2]
	assert.Equal(t, "Medium", x5[6])
	assert.Equal(t, "Yes", x5[10])
	assert.Equal(t, "not_applicable", x5[11])
	assert.Equal(t, "partial", x5[12])
	assert.Equal(t, []string{"OBD add key", "Unknown", "Bench FEM"}, x5[len(x5)-3:])

	rows, err = f.GetRows("Audi")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestWrite_Stats(t *testing.T) {
	f := writeWorkbook(t)
	rows, err := f.GetRows(StatsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, StatsHeader, rows[0])
	assert.Equal(t, []string{"BMW", "2", "4", "1", "1"}, rows[1])
	assert.Equal(t, []string{"Volkswagen", "0", "0", "0", "0"}, rows[4])
}
