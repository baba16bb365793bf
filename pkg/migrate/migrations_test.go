package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/promptstudio-ai/promptstudio-backend/pkg/migrate"
)

func TestInitMigrationCreatesCoreTables(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_init.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no init migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE users",
		"CREATE TABLE transactions",
		"transaction_id TEXT NOT NULL UNIQUE",
		"subscription_prompts_limit INTEGER NOT NULL DEFAULT 10",
		"currency TEXT NOT NULL DEFAULT 'BDT'",
		"status TEXT NOT NULL DEFAULT 'pending'",
		"metadata JSONB",
		"DROP TABLE IF EXISTS transactions",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMigrationDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations dir: %v", err)
	}
}
