// Package migration versions the database schema. Each Migration runs in
// its own transaction together with the bookkeeping row that records it.
package migration

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"
)

// Migration represents a single database migration
type Migration struct {
	Version string // Unique, sortable version identifier (timestamp)
	Name    string // Human-readable name of the migration
	Up      func(*gorm.DB) error
	Down    func(*gorm.DB) error
}

// MigrationRecord represents a record of an applied migration
type MigrationRecord struct {
	Version   string    `gorm:"primaryKey;size:32"`
	Name      string    `gorm:"not null"`
	AppliedAt time.Time `gorm:"not null"`
}

func (MigrationRecord) TableName() string {
	return "schema_migrations"
}

// Status pairs a known migration with whether it has been applied.
type Status struct {
	Version   string
	Name      string
	Applied   bool
	AppliedAt *time.Time
}

// ErrNothingToRevert is returned by Down when no migration is applied.
var ErrNothingToRevert = errors.New("no migrations to revert")

// Migrator handles the execution of migrations
type Migrator struct {
	db         *gorm.DB
	migrations []*Migration
}

// NewMigrator creates a Migrator over migrations, ordered by version.
func NewMigrator(db *gorm.DB, migrations ...*Migration) *Migrator {
	m := &Migrator{db: db}
	for _, mg := range migrations {
		m.Register(mg)
	}
	return m
}

// Register adds a migration to the migrator, keeping version order.
func (m *Migrator) Register(mg *Migration) {
	m.migrations = append(m.migrations, mg)
	sort.SliceStable(m.migrations, func(i, j int) bool {
		return m.migrations[i].Version < m.migrations[j].Version
	})
}

// Migrations returns the registered migrations in version order.
func (m *Migrator) Migrations() []*Migration {
	out := make([]*Migration, len(m.migrations))
	copy(out, m.migrations)
	return out
}

// Init creates the version tracking table if it doesn't exist
func (m *Migrator) Init(ctx context.Context) error {
	return m.db.WithContext(ctx).AutoMigrate(&MigrationRecord{})
}

// AppliedVersions returns applied migration records keyed by version.
func (m *Migrator) AppliedVersions(ctx context.Context) (map[string]MigrationRecord, error) {
	if err := m.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	var records []MigrationRecord
	if err := m.db.WithContext(ctx).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	applied := make(map[string]MigrationRecord, len(records))
	for _, record := range records {
		applied[record.Version] = record
	}
	return applied, nil
}

// Pending returns migrations that have not been applied yet.
func (m *Migrator) Pending(ctx context.Context) ([]*Migration, error) {
	applied, err := m.AppliedVersions(ctx)
	if err != nil {
		return nil, err
	}
	var pending []*Migration
	for _, mg := range m.migrations {
		if _, ok := applied[mg.Version]; !ok {
			pending = append(pending, mg)
		}
	}
	return pending, nil
}

// Up applies all pending migrations and returns the ones it applied.
func (m *Migrator) Up(ctx context.Context) ([]*Migration, error) {
	pending, err := m.Pending(ctx)
	if err != nil {
		return nil, err
	}

	var done []*Migration
	for _, mg := range pending {
		err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := mg.Up(tx); err != nil {
				return fmt.Errorf("failed to apply migration %s: %w", mg.Name, err)
			}
			record := MigrationRecord{
				Version:   mg.Version,
				Name:      mg.Name,
				AppliedAt: time.Now().UTC(),
			}
			if err := tx.Create(&record).Error; err != nil {
				return fmt.Errorf("failed to record migration %s: %w", mg.Name, err)
			}
			return nil
		})
		if err != nil {
			return done, err
		}
		done = append(done, mg)
	}
	return done, nil
}

// Down rolls back the most recently applied migration
func (m *Migrator) Down(ctx context.Context) (*Migration, error) {
	if err := m.Init(ctx); err != nil {
		return nil, err
	}

	var last MigrationRecord
	err := m.db.WithContext(ctx).Order("version DESC").First(&last).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNothingToRevert
	}
	if err != nil {
		return nil, err
	}

	var target *Migration
	for _, mg := range m.migrations {
		if mg.Version == last.Version {
			target = mg
			break
		}
	}
	if target == nil {
		return nil, fmt.Errorf("migration for version %s not found", last.Version)
	}

	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := target.Down(tx); err != nil {
			return fmt.Errorf("failed to revert migration %s: %w", target.Name, err)
		}
		if err := tx.Delete(&last).Error; err != nil {
			return fmt.Errorf("failed to remove migration record: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return target, nil
}

// Status reports every registered migration and whether it is applied.
func (m *Migrator) Status(ctx context.Context) ([]Status, error) {
	applied, err := m.AppliedVersions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Status, 0, len(m.migrations))
	for _, mg := range m.migrations {
		st := Status{Version: mg.Version, Name: mg.Name}
		if rec, ok := applied[mg.Version]; ok {
			st.Applied = true
			at := rec.AppliedAt
			st.AppliedAt = &at
		}
		out = append(out, st)
	}
	return out, nil
}

// History returns applied migration records, newest first.
func (m *Migrator) History(ctx context.Context) ([]MigrationRecord, error) {
	if err := m.Init(ctx); err != nil {
		return nil, err
	}
	var records []MigrationRecord
	if err := m.db.WithContext(ctx).Order("applied_at DESC, version DESC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to get migration history: %w", err)
	}
	return records, nil
}
