// Command migrate applies or reverts the SQL files under migrations/.
// Applied versions are tracked in schema_migrations.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
)

const migrationsDir = "migrations"

type migration struct {
	version int
	name    string
	path    string
}

func main() {
	mode := flag.String("mode", "up", "migration mode: up or down")
	flag.Parse()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("failed to ping database: %v", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		log.Fatalf("failed to ensure schema_migrations: %v", err)
	}

	var run error
	switch *mode {
	case "up":
		run = applyUp(db)
	case "down":
		run = applyDown(db)
	default:
		log.Fatalf("unknown mode: %s", *mode)
	}
	if run != nil {
		log.Fatalf("migration %s failed: %v", *mode, run)
	}
	log.Printf("migration %s completed", *mode)
}

func load(kind string) ([]migration, error) {
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return nil, err
	}

	var out []migration
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, "."+kind+".sql") {
			continue
		}
		parts := strings.SplitN(name, "_", 2)
		if len(parts) != 2 {
			log.Printf("skip migration without version prefix: %s", name)
			continue
		}
		version, err := strconv.Atoi(parts[0])
		if err != nil {
			log.Printf("skip migration without numeric prefix: %s", name)
			continue
		}
		out = append(out, migration{
			version: version,
			name:    strings.TrimSuffix(parts[1], "."+kind+".sql"),
			path:    filepath.Join(migrationsDir, name),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

func applied(db *sql.DB, version int) (bool, error) {
	var exists bool
	err := db.QueryRow("SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", version).Scan(&exists)
	return exists, err
}

func applyUp(db *sql.DB) error {
	files, err := load("up")
	if err != nil {
		return err
	}
	for _, m := range files {
		done, err := applied(db, m.version)
		if err != nil {
			return err
		}
		if done {
			continue
		}
		log.Printf("applying %03d_%s", m.version, m.name)
		if err := execFile(db, m.path); err != nil {
			return fmt.Errorf("applying %s: %w", m.path, err)
		}
		if _, err := db.Exec("INSERT INTO schema_migrations(version, name) VALUES($1, $2)", m.version, m.name); err != nil {
			return err
		}
	}
	return nil
}

func applyDown(db *sql.DB) error {
	files, err := load("down")
	if err != nil {
		return err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].version > files[j].version })

	for _, m := range files {
		done, err := applied(db, m.version)
		if err != nil {
			return err
		}
		if !done {
			continue
		}
		log.Printf("reverting %03d_%s", m.version, m.name)
		if err := execFile(db, m.path); err != nil {
			return fmt.Errorf("reverting %s: %w", m.path, err)
		}
		if _, err := db.Exec("DELETE FROM schema_migrations WHERE version = $1", m.version); err != nil {
			return err
		}
	}
	return nil
}

func execFile(db *sql.DB, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	_, err = db.Exec(string(content))
	return err
}
