// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/holoauth/pkg/errutil"
)

type mockMigrate struct {
	upErr          error
	downErr        error
	stepsErr       error
	versionVal     uint
	versionErr     error
	dirty          bool
	forceErr       error
	closeSourceErr error
	closeDbErr     error
}

func (m *mockMigrate) Up() error                    { return m.upErr }
func (m *mockMigrate) Down() error                  { return m.downErr }
func (m *mockMigrate) Steps(_ int) error            { return m.stepsErr }
func (m *mockMigrate) Version() (uint, bool, error) { return m.versionVal, m.dirty, m.versionErr }
func (m *mockMigrate) Force(_ int) error            { return m.forceErr }
func (m *mockMigrate) Close() (error, error)        { return m.closeSourceErr, m.closeDbErr }

func TestNewMigrator_InvalidURL(t *testing.T) {
	_, err := NewMigrator("invalid://url")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MIGRATION_INIT_FAILED")
}

func TestMigrateURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"postgres://u:p@localhost:5432/db", "pgx5://u:p@localhost:5432/db"},
		{"postgresql://localhost/db?sslmode=disable", "pgx5://localhost/db?sslmode=disable"},
		{"pgx5://localhost/db", "pgx5://localhost/db"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, migrateURL(tt.in))
		})
	}
}

func TestMigrator_Operations(t *testing.T) {
	dbErr := errors.New("database locked")

	tests := []struct {
		name     string
		mock     *mockMigrate
		run      func(*Migrator) error
		wantCode string
	}{
		{name: "up", mock: &mockMigrate{}, run: (*Migrator).Up},
		{name: "up no change", mock: &mockMigrate{upErr: migrate.ErrNoChange}, run: (*Migrator).Up},
		{name: "up error", mock: &mockMigrate{upErr: dbErr}, run: (*Migrator).Up, wantCode: "MIGRATION_UP_FAILED"},
		{name: "down", mock: &mockMigrate{}, run: (*Migrator).Down},
		{name: "down no change", mock: &mockMigrate{downErr: migrate.ErrNoChange}, run: (*Migrator).Down},
		{name: "down error", mock: &mockMigrate{downErr: dbErr}, run: (*Migrator).Down, wantCode: "MIGRATION_DOWN_FAILED"},
		{
			name: "steps no change",
			mock: &mockMigrate{stepsErr: migrate.ErrNoChange},
			run:  func(m *Migrator) error { return m.Steps(0) },
		},
		{
			name:     "steps error",
			mock:     &mockMigrate{stepsErr: dbErr},
			run:      func(m *Migrator) error { return m.Steps(2) },
			wantCode: "MIGRATION_STEPS_FAILED",
		},
		{
			name: "force",
			mock: &mockMigrate{},
			run:  func(m *Migrator) error { return m.Force(1) },
		},
		{
			name:     "force negative",
			mock:     &mockMigrate{},
			run:      func(m *Migrator) error { return m.Force(-1) },
			wantCode: "INVALID_VERSION",
		},
		{
			name:     "force error",
			mock:     &mockMigrate{forceErr: dbErr},
			run:      func(m *Migrator) error { return m.Force(1) },
			wantCode: "MIGRATION_FORCE_FAILED",
		},
		{name: "close", mock: &mockMigrate{}, run: (*Migrator).Close},
		{
			name:     "close source error",
			mock:     &mockMigrate{closeSourceErr: dbErr},
			run:      (*Migrator).Close,
			wantCode: "MIGRATION_CLOSE_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run(&Migrator{m: tt.mock})
			if tt.wantCode == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, tt.wantCode)
		})
	}
}

func TestMigrator_Close_BothErrors(t *testing.T) {
	m := &Migrator{m: &mockMigrate{
		closeSourceErr: errors.New("source close failed"),
		closeDbErr:     errors.New("db close failed"),
	}}
	err := m.Close()
	require.Error(t, err)
	errutil.AssertErrorContext(t, err, "component", "both")
	assert.Contains(t, err.Error(), "source close failed")
	assert.Contains(t, err.Error(), "db close failed")
}

func TestMigrator_Version(t *testing.T) {
	t.Run("fresh database", func(t *testing.T) {
		m := &Migrator{m: &mockMigrate{versionErr: migrate.ErrNilVersion}}
		version, dirty, err := m.Version()
		require.NoError(t, err)
		assert.Equal(t, uint(0), version)
		assert.False(t, dirty)
	})

	t.Run("dirty", func(t *testing.T) {
		m := &Migrator{m: &mockMigrate{versionVal: 2, dirty: true}}
		version, dirty, err := m.Version()
		require.NoError(t, err)
		assert.Equal(t, uint(2), version)
		assert.True(t, dirty)
	})

	t.Run("error", func(t *testing.T) {
		m := &Migrator{m: &mockMigrate{versionErr: errors.New("connection lost")}}
		_, _, err := m.Version()
		errutil.AssertErrorCode(t, err, "MIGRATION_VERSION_FAILED")
	})
}

func TestMigrator_PendingMigrations(t *testing.T) {
	tests := []struct {
		name string
		mock *mockMigrate
		want []uint
	}{
		{name: "fresh database", mock: &mockMigrate{versionErr: migrate.ErrNilVersion}, want: []uint{1, 2}},
		{name: "partially applied", mock: &mockMigrate{versionVal: 1}, want: []uint{2}},
		{name: "at latest", mock: &mockMigrate{versionVal: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pending, err := (&Migrator{m: tt.mock}).PendingMigrations()
			require.NoError(t, err)
			assert.Equal(t, tt.want, pending)
		})
	}

	t.Run("version error carries operation", func(t *testing.T) {
		m := &Migrator{m: &mockMigrate{versionErr: errors.New("connection lost")}}
		_, err := m.PendingMigrations()
		require.Error(t, err)
		errutil.AssertErrorContext(t, err, "operation", "get pending migrations")
	})
}

func TestMigrationsFS_EmbeddedFiles(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)
	assert.Len(t, entries, 4, "two migrations, each with up and down")

	pattern := regexp.MustCompile(`^\d{6}_\w+\.(up|down)\.sql$`)
	for _, entry := range entries {
		assert.True(t, pattern.MatchString(entry.Name()), "unexpected migration file %s", entry.Name())
	}
}

func TestMigrationName(t *testing.T) {
	name, err := MigrationName(1)
	require.NoError(t, err)
	assert.Equal(t, "000001_create_users", name)

	name, err = MigrationName(2)
	require.NoError(t, err)
	assert.Equal(t, "000002_create_banned_tokens", name)

	name, err = MigrationName(99)
	require.NoError(t, err)
	assert.Empty(t, name)
}

func TestOpenPool_InvalidURLString(t *testing.T) {
	_, err := OpenPool(context.Background(), "not a url ://", DefaultConnectOptions)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "DB_CONFIG_INVALID")
}
