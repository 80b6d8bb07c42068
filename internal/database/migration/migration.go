// Package migration applies versioned schema changes and records each one in
// a tracking table, so a change runs once and later edits to it are detected.
package migration

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Migration is one versioned schema change owned by a module.
type Migration struct {
	Module  string
	Version int
	Name    string
	SQL     string
}

// ID identifies the migration across modules, e.g. "users:version_1".
func (m Migration) ID() string {
	return fmt.Sprintf("%s:version_%d", m.Module, m.Version)
}

// Checksum is the hex SHA-256 of the SQL body.
func (m Migration) Checksum() string {
	sum := sha256.Sum256([]byte(m.SQL))
	return hex.EncodeToString(sum[:])
}

// Users is the schema of the users bounded context. The UNIQUE constraints on
// username and email back the service-level uniqueness check, which is not
// atomic on its own. Column widths match the DTO length limits.
var Users = []Migration{
	{
		Module:  "users",
		Version: 1,
		Name:    "create_table_users",
		SQL: `CREATE TABLE IF NOT EXISTS users (
  id         UUID         PRIMARY KEY,
  username   VARCHAR(50)  NOT NULL UNIQUE,
  email      VARCHAR(255) NOT NULL UNIQUE,
  full_name  VARCHAR(100) NOT NULL,
  age        INTEGER      CHECK (age BETWEEN 1 AND 150),
  created_at TIMESTAMPTZ  NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ  NOT NULL DEFAULT now(),
  CHECK (updated_at >= created_at)
);`,
	},
	{
		Module:  "users",
		Version: 2,
		Name:    "create_index_users_age",
		SQL:     `CREATE INDEX IF NOT EXISTS idx_users_age ON users (age);`,
	},
	{
		Module:  "users",
		Version: 3,
		Name:    "create_index_users_created_at",
		SQL:     `CREATE INDEX IF NOT EXISTS idx_users_created_at ON users (created_at, id);`,
	},
}

// All returns every known migration in execution order.
func All() []Migration {
	return append([]Migration(nil), Users...)
}

// validate rejects duplicate identifiers and versions that do not ascend
// within a module.
func validate(migrations []Migration) error {
	last := map[string]int{}
	for _, m := range migrations {
		if m.Module == "" || m.Version < 1 {
			return fmt.Errorf("migration %q: module and positive version required", m.Name)
		}
		if prev, ok := last[m.Module]; ok && m.Version <= prev {
			return fmt.Errorf("migration %s: version must be greater than %d", m.ID(), prev)
		}
		last[m.Module] = m.Version
	}
	return nil
}
