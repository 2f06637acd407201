package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/quizbot/core/config"
)

func TestListMigrationFilesAndCount(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"000002_knowledge.up.sql", "000001_init.up.sql", "000001_init.down.sql", "README.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("--"), 0o644))
	}

	files := listMigrationFiles(dir)
	assert.Equal(t, []string{"000001_init.up.sql", "000002_knowledge.up.sql"}, files)
	assert.Equal(t, 2, countApplied(files, 0, 2))
	assert.Equal(t, 1, countApplied(files, 1, 2))
	assert.Equal(t, 0, countApplied(files, 2, 2))
}

func TestDSNDefaultsPort(t *testing.T) {
	cfg := coreconfig.DatabaseConfig{Host: "db", User: "quiz", Password: "pw", Name: "quiz", SSLMode: "disable"}
	assert.Equal(t, "user=quiz password=pw host=db port=5432 dbname=quiz sslmode=disable", DSN(cfg))
	assert.Equal(t, "postgres://quiz:pw@db:5432/quiz?sslmode=disable", URL(cfg))
}
