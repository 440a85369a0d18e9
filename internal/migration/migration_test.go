package migration

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFiles_PairedUpAndDown(t *testing.T) {
	files, err := Files()
	require.NoError(t, err)
	require.NotEmpty(t, files)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, f := range files {
		switch {
		case strings.HasSuffix(f, ".up.sql"):
			ups[strings.TrimSuffix(f, ".up.sql")] = true
		case strings.HasSuffix(f, ".down.sql"):
			downs[strings.TrimSuffix(f, ".down.sql")] = true
		default:
			t.Errorf("unexpected migration file %s", f)
		}
	}
	assert.Equal(t, ups, downs)
}

func TestInitSchema_Constraints(t *testing.T) {
	raw, err := embeddedMigrations.ReadFile("migrations/000001_init_schema.up.sql")
	require.NoError(t, err)
	schema := string(raw)

	assert.Contains(t, schema, "user_id                 INTEGER NOT NULL UNIQUE")
	assert.Contains(t, schema, "ON users (LOWER(email))")
	assert.Contains(t, schema, "PRIMARY KEY (user_id, role_id)")
	assert.Contains(t, schema, "(processed_by_admin_id IS NOT NULL)")
}

func TestProfileFields_Nullable(t *testing.T) {
	raw, err := embeddedMigrations.ReadFile("migrations/000002_add_user_profile_fields.up.sql")
	require.NoError(t, err)
	schema := string(raw)

	for _, col := range []string{"avatar_url VARCHAR(512)", "location   VARCHAR(255)", "bio        TEXT", "tags       TEXT[]"} {
		assert.Contains(t, schema, col)
	}
	assert.NotContains(t, schema, "NOT NULL")
}

func TestRun_NilDB(t *testing.T) {
	assert.Error(t, Run(nil))
}
