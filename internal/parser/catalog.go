package parser

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/marcboeker/go-duckdb"

	"github.com/robot-workbench/backend/internal/models"
)

// Catalog records every successfully decoded robot in a DuckDB file so past
// uploads can be listed and searched across server restarts.
type Catalog struct {
	db     *sql.DB
	dbPath string
}

// CatalogEntry is one row of the decoded-robot catalog.
type CatalogEntry struct {
	SessionID  string    `json:"sessionId"`
	FileID     string    `json:"fileId"`
	RobotName  string    `json:"robotName"`
	Format     string    `json:"format"`
	LinkCount  int       `json:"linkCount"`
	JointCount int       `json:"jointCount"`
	DecodedAt  time.Time `json:"decodedAt"`
}

// OpenCatalog opens (or creates) the catalog database at dbPath.
func OpenCatalog(dbPath string) (*Catalog, error) {
	fmt.Printf("[Catalog] Opening database at: %s\n", dbPath)

	connector, err := duckdb.NewConnector(dbPath, func(execer driver.ExecerContext) error {
		pragmas := []string{
			"PRAGMA memory_limit='256MB'",
			"PRAGMA threads=2",
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				fmt.Printf("[Catalog] Pragma warning: %v\n", err)
				// Non-fatal - continue even if pragma fails
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS robots (
			session_id  VARCHAR PRIMARY KEY,
			file_id     VARCHAR NOT NULL,
			robot_name  VARCHAR NOT NULL,
			format      VARCHAR NOT NULL,
			link_count  INTEGER NOT NULL,
			joint_count INTEGER NOT NULL,
			decoded_at  BIGINT NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create robots table: %w", err)
	}

	return &Catalog{db: db, dbPath: dbPath}, nil
}

// Add records one decoded robot. An existing row for the same session is
// replaced.
func (c *Catalog) Add(sessionID, fileID, format string, robot *models.Robot) error {
	_, err := c.db.Exec(`
		INSERT OR REPLACE INTO robots (session_id, file_id, robot_name, format, link_count, joint_count, decoded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, sessionID, fileID, robot.Name, format, len(robot.Links), len(robot.Joints), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("catalog insert failed: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (c *Catalog) Recent(ctx context.Context, limit int) ([]CatalogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := c.db.QueryContext(ctx, `
		SELECT session_id, file_id, robot_name, format, link_count, joint_count, decoded_at
		FROM robots ORDER BY decoded_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("catalog query failed: %w", err)
	}
	defer rows.Close()

	return scanCatalogRows(rows)
}

// Search returns entries whose robot name matches the pattern, newest first.
func (c *Catalog) Search(ctx context.Context, name string, limit int) ([]CatalogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := c.db.QueryContext(ctx, `
		SELECT session_id, file_id, robot_name, format, link_count, joint_count, decoded_at
		FROM robots WHERE robot_name ILIKE ? ORDER BY decoded_at DESC LIMIT ?
	`, "%"+name+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("catalog search failed: %w", err)
	}
	defer rows.Close()

	return scanCatalogRows(rows)
}

func scanCatalogRows(rows *sql.Rows) ([]CatalogEntry, error) {
	var entries []CatalogEntry
	for rows.Next() {
		var e CatalogEntry
		var decodedMs int64
		if err := rows.Scan(&e.SessionID, &e.FileID, &e.RobotName, &e.Format, &e.LinkCount, &e.JointCount, &decodedMs); err != nil {
			return nil, err
		}
		e.DecodedAt = time.UnixMilli(decodedMs)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the underlying database. The file is kept; the catalog is
// persistent by design.
func (c *Catalog) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
