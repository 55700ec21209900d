package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationNamesAreSortedSQLFiles(t *testing.T) {
	names, err := migrationNames()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "001_kv_items.sql", names[0])
	for _, n := range names {
		assert.Contains(t, n, ".sql")
	}
}
