// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PlayerGate Contributors

package store

import (
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playergate/playergate/pkg/errutil"
)

func TestNewMigrator_InvalidURL(t *testing.T) {
	_, err := NewMigrator("invalid://url")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MIGRATION_INIT_FAILED")
}

// postgresql:// must be converted to pgx5:// for the golang-migrate
// pgx/v5 driver; otherwise this fails with "unknown driver".
func TestNewMigrator_PostgresqlScheme(t *testing.T) {
	_, err := NewMigrator("postgresql://localhost:5432/testdb")
	require.Error(t, err, "should fail due to connection, not URL scheme")
	errutil.AssertErrorCode(t, err, "MIGRATION_INIT_FAILED")
	assert.NotContains(t, err.Error(), "unknown driver")
}

// mockMigrate implements migrateIface for testing.
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

func TestMigrator_Up(t *testing.T) {
	tests := []struct {
		name        string
		upErr       error
		wantErrCode string
	}{
		{name: "success"},
		{name: "no change is success", upErr: migrate.ErrNoChange},
		{name: "failure", upErr: errors.New("database locked"), wantErrCode: "MIGRATION_UP_FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Migrator{m: &mockMigrate{upErr: tt.upErr}}
			err := m.Up()
			if tt.wantErrCode != "" {
				errutil.AssertErrorCode(t, err, tt.wantErrCode)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestMigrator_Down(t *testing.T) {
	tests := []struct {
		name        string
		downErr     error
		wantErrCode string
	}{
		{name: "success"},
		{name: "no change is success", downErr: migrate.ErrNoChange},
		{name: "failure", downErr: errors.New("constraint violation"), wantErrCode: "MIGRATION_DOWN_FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Migrator{m: &mockMigrate{downErr: tt.downErr}}
			err := m.Down()
			if tt.wantErrCode != "" {
				errutil.AssertErrorCode(t, err, tt.wantErrCode)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestMigrator_Steps(t *testing.T) {
	m := &Migrator{m: &mockMigrate{}}
	require.NoError(t, m.Steps(3))

	m = &Migrator{m: &mockMigrate{stepsErr: migrate.ErrNoChange}}
	require.NoError(t, m.Steps(-1))

	m = &Migrator{m: &mockMigrate{stepsErr: errors.New("boom")}}
	err := m.Steps(2)
	errutil.AssertErrorCode(t, err, "MIGRATION_STEPS_FAILED")
	errutil.AssertErrorContext(t, err, "steps", 2)
}

func TestMigrator_Version(t *testing.T) {
	t.Run("reports version and dirty state", func(t *testing.T) {
		m := &Migrator{m: &mockMigrate{versionVal: 3, dirty: true}}
		version, dirty, err := m.Version()
		require.NoError(t, err)
		assert.Equal(t, uint(3), version)
		assert.True(t, dirty)
	})

	t.Run("nil version maps to zero", func(t *testing.T) {
		m := &Migrator{m: &mockMigrate{versionErr: migrate.ErrNilVersion}}
		version, dirty, err := m.Version()
		require.NoError(t, err)
		assert.Equal(t, uint(0), version)
		assert.False(t, dirty)
	})

	t.Run("failure", func(t *testing.T) {
		m := &Migrator{m: &mockMigrate{versionErr: errors.New("boom")}}
		_, _, err := m.Version()
		errutil.AssertErrorCode(t, err, "MIGRATION_VERSION_FAILED")
	})
}

func TestMigrator_Force(t *testing.T) {
	m := &Migrator{m: &mockMigrate{}}
	require.NoError(t, m.Force(1))

	err := m.Force(-1)
	errutil.AssertErrorCode(t, err, "INVALID_VERSION")

	m = &Migrator{m: &mockMigrate{forceErr: errors.New("boom")}}
	err = m.Force(2)
	errutil.AssertErrorCode(t, err, "MIGRATION_FORCE_FAILED")
}

func TestMigrator_Close(t *testing.T) {
	tests := []struct {
		name      string
		sourceErr error
		dbErr     error
		wantErr   bool
	}{
		{name: "clean close"},
		{name: "source error", sourceErr: errors.New("source"), wantErr: true},
		{name: "database error", dbErr: errors.New("db"), wantErr: true},
		{name: "both errors", sourceErr: errors.New("source"), dbErr: errors.New("db"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Migrator{m: &mockMigrate{closeSourceErr: tt.sourceErr, closeDbErr: tt.dbErr}}
			err := m.Close()
			if tt.wantErr {
				errutil.AssertErrorCode(t, err, "MIGRATION_CLOSE_FAILED")
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestMigrator_PendingMigrations(t *testing.T) {
	t.Run("fresh database has all versions pending", func(t *testing.T) {
		m := &Migrator{m: &mockMigrate{versionErr: migrate.ErrNilVersion}}
		pending, err := m.PendingMigrations()
		require.NoError(t, err)
		require.NotEmpty(t, pending)
		assert.Equal(t, uint(1), pending[0])
	})

	t.Run("up-to-date database has none", func(t *testing.T) {
		m := &Migrator{m: &mockMigrate{versionVal: 999999}}
		pending, err := m.PendingMigrations()
		require.NoError(t, err)
		assert.Empty(t, pending)
	})
}

func TestMigrationName(t *testing.T) {
	name, err := MigrationName(1)
	require.NoError(t, err)
	assert.Equal(t, "000001_create_users", name)

	name, err = MigrationName(999999)
	require.NoError(t, err)
	assert.Empty(t, name, "unknown version has no name")
}

func TestMigrationsFS_EmbeddedFiles(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err, "should read embedded migrations directory")
	require.NotEmpty(t, entries)

	fileNames := make(map[string]bool)
	for _, entry := range entries {
		fileNames[entry.Name()] = true
	}
	assert.True(t, fileNames["000001_create_users.up.sql"])
	assert.True(t, fileNames["000001_create_users.down.sql"])

	// Every up migration needs a matching down migration, and all files
	// must follow the NNNNNN_name.(up|down).sql pattern.
	pattern := regexp.MustCompile(`^\d{6}_\w+\.(up|down)\.sql$`)
	for _, entry := range entries {
		name := entry.Name()
		assert.True(t, pattern.MatchString(name),
			"file %s should match pattern NNNNNN_name.(up|down).sql", name)
		if upBase, found := strings.CutSuffix(name, ".up.sql"); found {
			assert.True(t, fileNames[upBase+".down.sql"], "missing down migration for %s", name)
		}
	}
}
