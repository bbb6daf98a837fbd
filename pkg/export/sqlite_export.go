package export

import (
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/natefinch/atomic"

	"github.com/vanderheijden86/bouwkansen/pkg/geo"
	"github.com/vanderheijden86/bouwkansen/pkg/metrics"
	"github.com/vanderheijden86/bouwkansen/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLiteExporter writes a project view to a standalone SQLite database.
type SQLiteExporter struct {
	Projects []model.Project
	// Manifest supplies category labels; may be nil.
	Manifest *model.Manifest
	// Title and Source are recorded in export_meta when set.
	Title  string
	Source string
	// Filters is a free-form description of the view, recorded as-is.
	Filters string
}

// NewSQLiteExporter creates an exporter for projects.
func NewSQLiteExporter(projects []model.Project, m *model.Manifest) *SQLiteExporter {
	return &SQLiteExporter{Projects: projects, Manifest: m}
}

// Export builds the database next to path and moves it into place once it
// is complete, so readers never see a partial file.
func (e *SQLiteExporter) Export(path string) error {
	defer metrics.Timer(metrics.Export)()

	if err := ensureParent(path); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale temp file: %w", err)
	}

	if err := e.build(tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := atomic.ReplaceFile(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("move database into place: %w", err)
	}
	return nil
}

func (e *SQLiteExporter) build(dbPath string) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	dbClosed := false
	defer func() {
		if !dbClosed {
			db.Close()
		}
	}()

	if err := CreateSchema(db); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if err := e.insertProjects(db); err != nil {
		return fmt.Errorf("insert projects: %w", err)
	}
	if err := e.insertMeta(db); err != nil {
		return fmt.Errorf("insert meta: %w", err)
	}
	if err := OptimizeDatabase(db); err != nil {
		return fmt.Errorf("optimize database: %w", err)
	}

	if err := db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	dbClosed = true
	return nil
}

func (e *SQLiteExporter) insertProjects(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	projStmt, err := tx.Prepare(`
		INSERT INTO projects (nis_code, ac_code, municipality, province, title, description,
			ap_code, ap_short, bd_code, bd_short, total_amount, amount_per_capita,
			y2026, y2027, y2028, y2029, y2030, y2031, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer projStmt.Close()

	catStmt, err := tx.Prepare(`INSERT OR IGNORE INTO categories (id, label) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer catStmt.Close()

	linkStmt, err := tx.Prepare(`INSERT OR IGNORE INTO project_categories (nis_code, ac_code, category_id) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer linkStmt.Close()

	for i := range e.Projects {
		p := &e.Projects[i]
		y := p.YearlyAmounts
		_, err := projStmt.Exec(
			p.NISCode, p.ACCode, p.Municipality, geo.ProvinceFor(p.NISCode),
			p.ACShort, p.ACLong,
			p.APCode, p.APShort, p.BDCode, p.BDShort,
			p.TotalAmount, p.AmountPerCapita,
			y[0], y[1], y[2], y[3], y[4], y[5],
			i,
		)
		if err != nil {
			return fmt.Errorf("insert project %s: %w", p.Key(), err)
		}
		for _, c := range p.Categories {
			if _, err := catStmt.Exec(c, e.Manifest.Label(c)); err != nil {
				return fmt.Errorf("insert category %s: %w", c, err)
			}
			if _, err := linkStmt.Exec(p.NISCode, p.ACCode, c); err != nil {
				return fmt.Errorf("link %s to %s: %w", p.Key(), c, err)
			}
		}
	}
	return tx.Commit()
}

func (e *SQLiteExporter) insertMeta(db *sql.DB) error {
	meta := map[string]string{
		"generated_at":   time.Now().UTC().Format(time.RFC3339),
		"project_count":  strconv.Itoa(len(e.Projects)),
		"schema_version": strconv.Itoa(SchemaVersion),
	}
	if e.Title != "" {
		meta["title"] = e.Title
	}
	if e.Source != "" {
		meta["source"] = e.Source
	}
	if e.Filters != "" {
		meta["filters"] = e.Filters
	}
	for key, value := range meta {
		if err := InsertMetaValue(db, key, value); err != nil {
			return fmt.Errorf("insert meta %s: %w", key, err)
		}
	}
	return nil
}
