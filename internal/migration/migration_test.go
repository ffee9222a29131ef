package migration

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/smallbiznis/taskboard/internal/config"
	"github.com/smallbiznis/taskboard/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	ups, downs := map[string]bool{}, map[string]bool{}
	for _, entry := range entries {
		name := entry.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Errorf("unexpected file %s", name)
		}
	}
	assert.Equal(t, ups, downs)
}

func TestApplyAutoMigratesSQLite(t *testing.T) {
	conn, err := db.NewTest()
	require.NoError(t, err)

	cfg := config.Config{AutoMigrate: true, DBType: db.TypeSQLite}
	require.NoError(t, Apply(conn, cfg, zaptest.NewLogger(t)))

	for _, table := range []string{"users", "boards", "columns", "cards", "invitations"} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}
}

func TestApplySkipsWhenDisabled(t *testing.T) {
	conn, err := db.NewTest()
	require.NoError(t, err)

	require.NoError(t, Apply(conn, config.Config{AutoMigrate: false, DBType: db.TypeSQLite}, zaptest.NewLogger(t)))
	assert.False(t, conn.Migrator().HasTable("boards"))
}
