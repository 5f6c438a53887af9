package ledger

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/competitor-agent/internal/model"
)

// Mirror is a non-authoritative sqlite copy of the update ledger for ad-hoc
// SQL queries. The CSVs remain the source of truth; Sync drops and reloads
// the mirror wholesale.
type Mirror struct {
	db *sql.DB
}

// OpenMirror opens the sqlite mirror at path and configures WAL mode.
func OpenMirror(path string) (*Mirror, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "mirror: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "mirror: exec %s", pragma)
		}
	}
	return &Mirror{db: db}, nil
}

const mirrorMigration = `
CREATE TABLE IF NOT EXISTS updates (
	id           TEXT PRIMARY KEY,
	company      TEXT NOT NULL,
	source_url   TEXT NOT NULL,
	title        TEXT NOT NULL,
	published_at DATETIME,
	collected_at DATETIME NOT NULL,
	summary      TEXT,
	category     TEXT,
	impact       TEXT
);

CREATE INDEX IF NOT EXISTS idx_updates_company ON updates(company);
CREATE INDEX IF NOT EXISTS idx_updates_category ON updates(category);
`

// Migrate creates the mirror schema.
func (m *Mirror) Migrate(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, mirrorMigration)
	return eris.Wrap(err, "mirror: migrate")
}

// Sync replaces the mirror contents with the given ledger rows.
func (m *Mirror) Sync(ctx context.Context, rows []model.Update) error {
	if err := m.Migrate(ctx); err != nil {
		return err
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "mirror: begin tx")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM updates"); err != nil {
		return eris.Wrap(err, "mirror: clear")
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO updates (id, company, source_url, title, published_at, collected_at, summary, category, impact)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "mirror: prepare insert")
	}
	defer stmt.Close()

	for _, row := range rows {
		var published any
		if row.PublishedAt != nil {
			published = row.PublishedAt.UTC().Format(time.RFC3339)
		}
		_, err := stmt.ExecContext(ctx,
			row.ID, row.Company, row.SourceURL, row.Title,
			published, row.CollectedAt.UTC().Format(time.RFC3339),
			row.Summary, row.Category, row.Impact,
		)
		if err != nil {
			return eris.Wrapf(err, "mirror: insert %s", row.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "mirror: commit")
	}
	return nil
}

// Close closes the mirror database.
func (m *Mirror) Close() error {
	return m.db.Close()
}
