package keydb

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/WessleyAI/keyintel/engine/domain"
	"github.com/WessleyAI/keyintel/pkg/fn"
)

// LoadFile reads one manufacturer file. Any failure (missing file, bad JSON,
// no entry for the make) degrades to an empty dataset; the cause is logged.
func LoadFile(path string, m domain.Make, log *slog.Logger) *Dataset {
	if log == nil {
		log = slog.Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Info("dataset not found, using empty dataset", "make", m, "path", path)
		} else {
			log.Warn("dataset unreadable, using empty dataset", "make", m, "path", path, "err", err)
		}
		return NewDataset(m)
	}
	ds, err := Parse(m, data)
	if err != nil {
		log.Warn("dataset malformed, using empty dataset", "make", m, "path", path, "err", err)
		return NewDataset(m)
	}
	return ds
}

// Load reads the dataset of every supported make from dir, one goroutine per
// file, and logs any integrity issues it finds.
func Load(dir string, log *slog.Logger) *Database {
	if log == nil {
		log = slog.Default()
	}
	sets := fn.ParMap(domain.SupportedMakes, 0, func(m domain.Make) *Dataset {
		return LoadFile(filepath.Join(dir, m.DataFile()), m, log)
	})
	db := NewDatabase(sets...)

	for _, issue := range db.Check() {
		log.Warn("dataset integrity issue",
			"make", issue.Make,
			"model", issue.Model,
			"kind", issue.Kind,
			"ranges", issue.Ranges,
			"detail", issue.Detail,
		)
	}
	for _, st := range db.Stats() {
		log.Debug("dataset loaded", "make", st.Make, "models", st.Models, "buckets", st.Buckets)
	}
	return db
}
