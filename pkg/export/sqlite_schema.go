package export

import (
	"database/sql"
	"fmt"
)

// SchemaVersion is stored in export_meta.
const SchemaVersion = 1

// CreateSchema creates all tables and indexes in the database.
func CreateSchema(db *sql.DB) error {
	if err := createCoreTables(db); err != nil {
		return fmt.Errorf("create core tables: %w", err)
	}
	if err := createIndexes(db); err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	if err := createMetaTable(db); err != nil {
		return fmt.Errorf("create meta table: %w", err)
	}
	return nil
}

func createCoreTables(db *sql.DB) error {
	projectsSQL := `
		CREATE TABLE IF NOT EXISTS projects (
			nis_code TEXT NOT NULL,
			ac_code TEXT NOT NULL,
			municipality TEXT NOT NULL,
			province TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT,
			ap_code TEXT,
			ap_short TEXT,
			bd_code TEXT,
			bd_short TEXT,
			total_amount REAL NOT NULL,
			amount_per_capita REAL,
			y2026 REAL NOT NULL DEFAULT 0,
			y2027 REAL NOT NULL DEFAULT 0,
			y2028 REAL NOT NULL DEFAULT 0,
			y2029 REAL NOT NULL DEFAULT 0,
			y2030 REAL NOT NULL DEFAULT 0,
			y2031 REAL NOT NULL DEFAULT 0,
			position INTEGER NOT NULL,
			PRIMARY KEY (nis_code, ac_code)
		)
	`
	if _, err := db.Exec(projectsSQL); err != nil {
		return fmt.Errorf("create projects table: %w", err)
	}

	categoriesSQL := `
		CREATE TABLE IF NOT EXISTS categories (
			id TEXT PRIMARY KEY,
			label TEXT NOT NULL
		)
	`
	if _, err := db.Exec(categoriesSQL); err != nil {
		return fmt.Errorf("create categories table: %w", err)
	}

	// A project can carry several categories.
	linkSQL := `
		CREATE TABLE IF NOT EXISTS project_categories (
			nis_code TEXT NOT NULL,
			ac_code TEXT NOT NULL,
			category_id TEXT NOT NULL,
			PRIMARY KEY (nis_code, ac_code, category_id),
			FOREIGN KEY (nis_code, ac_code) REFERENCES projects(nis_code, ac_code),
			FOREIGN KEY (category_id) REFERENCES categories(id)
		)
	`
	if _, err := db.Exec(linkSQL); err != nil {
		return fmt.Errorf("create project_categories table: %w", err)
	}
	return nil
}

func createIndexes(db *sql.DB) error {
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_projects_municipality ON projects(municipality)`,
		`CREATE INDEX IF NOT EXISTS idx_projects_province ON projects(province)`,
		`CREATE INDEX IF NOT EXISTS idx_projects_amount ON projects(total_amount DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_project_categories_category ON project_categories(category_id)`,
	}
	for _, stmt := range indexes {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

func createMetaTable(db *sql.DB) error {
	metaSQL := `
		CREATE TABLE IF NOT EXISTS export_meta (
			key TEXT PRIMARY KEY,
			value TEXT
		)
	`
	if _, err := db.Exec(metaSQL); err != nil {
		return fmt.Errorf("create export_meta table: %w", err)
	}
	return nil
}

// InsertMetaValue inserts or updates a metadata key-value pair.
func InsertMetaValue(db *sql.DB, key, value string) error {
	_, err := db.Exec(`INSERT OR REPLACE INTO export_meta (key, value) VALUES (?, ?)`, key, value)
	return err
}

// OptimizeDatabase compacts the file. Call it last, before closing.
func OptimizeDatabase(db *sql.DB) error {
	for _, stmt := range []string{`PRAGMA journal_mode=DELETE`, `ANALYZE`, `PRAGMA optimize`} {
		// Pragmas may be refused depending on state; keep going.
		_, _ = db.Exec(stmt)
	}
	if _, err := db.Exec(`VACUUM`); err != nil {
		return fmt.Errorf("vacuum: %w", err)
	}
	return nil
}
