package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMigrationsSortedAndVersioned(t *testing.T) {
	migrations, err := LoadMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	assert.Equal(t, 1, migrations[0].Version)
	for i := 1; i < len(migrations); i++ {
		assert.Less(t, migrations[i-1].Version, migrations[i].Version)
	}
}

func TestInitMigrationCarriesQueueConstraints(t *testing.T) {
	migrations, err := LoadMigrations()
	require.NoError(t, err)

	schema := migrations[0].SQL
	assert.Contains(t, schema, "visits_scope_number_key")
	assert.Contains(t, schema, "visits_one_called_per_scope")
	assert.Contains(t, schema, "queue_counters")
}
