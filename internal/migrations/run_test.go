package migrations

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func getTestDB(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = db.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})
	return db
}

func getMigrationsPath(t *testing.T) string {
	projectRoot, err := filepath.Abs("../..")
	require.NoError(t, err)
	return filepath.Join(projectRoot, "migrations")
}

func exists(t *testing.T, db *sql.DB, query string, args ...any) bool {
	t.Helper()
	var ok bool
	require.NoError(t, db.QueryRow(query, args...).Scan(&ok))
	return ok
}

func TestRunMigrations(t *testing.T) {
	db := getTestDB(t)

	require.NoError(t, Run(db, getMigrationsPath(t)))

	for _, table := range []string{"users", "payments"} {
		assert.True(t, exists(t, db, `SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = $1)`, table), "table %s", table)
	}
	assert.True(t, exists(t, db, `SELECT EXISTS (
		SELECT 1 FROM pg_indexes WHERE tablename = 'users' AND indexname = 'users_union_id_key')`))
	assert.True(t, exists(t, db, `SELECT EXISTS (
		SELECT 1 FROM pg_trigger WHERE tgname = 'users_union_id_immutable')`))
}

func TestMigrationIdempotency(t *testing.T) {
	db := getTestDB(t)
	path := getMigrationsPath(t)

	require.NoError(t, Run(db, path))
	require.NoError(t, Run(db, path))
}

func TestSchemaConstraints(t *testing.T) {
	db := getTestDB(t)
	require.NoError(t, Run(db, getMigrationsPath(t)))

	insert := `INSERT INTO users (union_id, name, email, phone, password_hash) VALUES ($1, $2, $3, $4, 'x')`

	_, err := db.Exec(insert, "123456", "A", "a@example.org", "9000000001")
	require.NoError(t, err)

	_, err = db.Exec(insert, "123456", "B", "b@example.org", "9000000002")
	assert.Error(t, err, "duplicate union id must be rejected")

	_, err = db.Exec(insert, "012345", "C", "c@example.org", "9000000003")
	assert.Error(t, err, "union id must not start with zero")

	_, err = db.Exec(`UPDATE users SET union_id = '654321' WHERE union_id = '123456'`)
	assert.Error(t, err, "union id must be immutable")

	_, err = db.Exec(`UPDATE users SET name = 'A2' WHERE union_id = '123456'`)
	assert.NoError(t, err)
}

func TestMissingMigrationsDir(t *testing.T) {
	db := getTestDB(t)
	assert.Error(t, Run(db, filepath.Join(t.TempDir(), "absent")))
}
