package migrate

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSQLMigrationWritesValidFile(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 10, 2, 8, 30, 0, 0, time.UTC)

	path, err := createSQLMigrationAt(dir, "Add Payout Index!", now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "20261002083000_add_payout_index.sql"), path)
	require.NoError(t, ValidateDir(dir))

	_, err = createSQLMigrationAt(dir, "add payout index", now)
	require.Error(t, err)
}

func TestCreateSQLMigrationRejectsEmptyName(t *testing.T) {
	_, err := createSQLMigrationAt(t.TempDir(), "!!!", time.Now())
	require.Error(t, err)
}

func TestValidateDirRejectsUnbalancedMarkers(t *testing.T) {
	require.Error(t, validateContent("x.sql", "-- +goose Up\n-- +goose StatementBegin\n-- +goose Down\n"))
}
