package migration

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// TableDrift lists what a model expects that the database lacks.
type TableDrift struct {
	Table          string
	MissingTable   bool
	MissingColumns []string
	MissingIndexes []string
}

// IsEmpty reports whether the table matches its model.
func (d TableDrift) IsEmpty() bool {
	return !d.MissingTable && len(d.MissingColumns) == 0 && len(d.MissingIndexes) == 0
}

// Drift compares models against the live schema and returns one entry per
// table that is missing, or is missing columns or indexes. Extra columns
// in the database are not reported.
func Drift(ctx context.Context, db *gorm.DB, models ...interface{}) ([]TableDrift, error) {
	db = db.WithContext(ctx)
	cache := &sync.Map{}
	m := db.Migrator()

	var out []TableDrift
	for _, model := range models {
		s, err := schema.Parse(model, cache, db.NamingStrategy)
		if err != nil {
			return nil, fmt.Errorf("failed to parse model %T: %w", model, err)
		}

		d := TableDrift{Table: s.Table}
		if !m.HasTable(model) {
			d.MissingTable = true
			out = append(out, d)
			continue
		}
		for _, name := range s.DBNames {
			if !m.HasColumn(model, name) {
				d.MissingColumns = append(d.MissingColumns, name)
			}
		}
		for _, idx := range s.ParseIndexes() {
			if !m.HasIndex(model, idx.Name) {
				d.MissingIndexes = append(d.MissingIndexes, idx.Name)
			}
		}
		sort.Strings(d.MissingColumns)
		sort.Strings(d.MissingIndexes)
		if !d.IsEmpty() {
			out = append(out, d)
		}
	}
	return out, nil
}
