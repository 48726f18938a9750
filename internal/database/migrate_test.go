package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationNamesAreOrdered(t *testing.T) {
	names, err := MigrationNames()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "001_schema.sql", names[0])

	script, err := migrations.ReadFile("migrations/" + names[0])
	require.NoError(t, err)
	assert.Contains(t, string(script), "UNIQUE (organisation_id, learning_path_id)")
	assert.Contains(t, string(script), "ON DELETE RESTRICT")
}
