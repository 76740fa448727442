// Package migrations embeds the SQL schema migrations, one directory per
// SQL dialect.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
)

//go:embed postgres/*.sql sqlite/*.sql
var files embed.FS

// Dialect returns the migration files for a dialect ("postgres" or "sqlite")
func Dialect(name string) (fs.FS, error) {
	switch name {
	case "postgres", "sqlite":
		return fs.Sub(files, name)
	default:
		return nil, fmt.Errorf("no migrations for dialect %q", name)
	}
}
