// File path: internal/sqlite/store.go
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/geekygoose/gander/internal/common"
)

// Store wraps a pooled sqlx.DB connection to the SQLite catalog.
type Store struct {
	db *sqlx.DB
}

// Open constructs a Store backed by the SQLite database at the provided path.
// The schema is migrated and the baseline framework seeded on first use.
func Open(path string) (*Store, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		cfg.Path = trimmed
	}
	return OpenWithConfig(cfg)
}

// OpenWithConfig constructs a Store using the provided configuration.
func OpenWithConfig(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path required")
	}
	abs, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve sqlite path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}
	busy := int(cfg.BusyTimeout / time.Millisecond)
	if busy <= 0 {
		busy = 5000
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)&_pragma=journal_mode(wal)", abs, busy)
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingTimeout := cfg.BusyTimeout
	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	if err := store.SeedEssentialEight(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	common.Logger().Info("sqlite: catalog ready", "path", abs)
	return store, nil
}

// Close releases the underlying database resources.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the underlying sqlx.DB for advanced callers.
func (s *Store) DB() *sqlx.DB {
	if s == nil {
		return nil
	}
	return s.db
}

func (s *Store) migrate(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("sqlite store not initialised")
	}
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	for i, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute schema statement %d: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}

// Journal mode and foreign-key enforcement are connection settings carried by
// the DSN _pragma parameters; they cannot run inside the migration
// transaction.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS frameworks (
                id TEXT PRIMARY KEY,
                name TEXT NOT NULL,
                version TEXT,
                description TEXT,
                created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
                updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
                UNIQUE(name)
        );`,
	`CREATE TABLE IF NOT EXISTS controls (
                id TEXT PRIMARY KEY,
                framework_id TEXT NOT NULL,
                code TEXT NOT NULL,
                title TEXT NOT NULL,
                description TEXT,
                created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
                updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
                FOREIGN KEY(framework_id) REFERENCES frameworks(id) ON DELETE CASCADE,
                UNIQUE(framework_id, code)
        );`,
	`CREATE TABLE IF NOT EXISTS requirements (
                id TEXT PRIMARY KEY,
                control_id TEXT NOT NULL,
                req_code TEXT NOT NULL,
                text TEXT NOT NULL,
                maturity_level INTEGER NOT NULL DEFAULT 1,
                guidance TEXT,
                created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
                updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
                FOREIGN KEY(control_id) REFERENCES controls(id) ON DELETE CASCADE,
                UNIQUE(control_id, req_code)
        );`,
	`CREATE TABLE IF NOT EXISTS documents (
                id TEXT PRIMARY KEY,
                filename TEXT NOT NULL,
                mime_type TEXT,
                storage_key TEXT NOT NULL,
                file_size INTEGER NOT NULL DEFAULT 0,
                sha256 TEXT,
                created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
                updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
        );`,
	`CREATE TABLE IF NOT EXISTS document_pages (
                id TEXT PRIMARY KEY,
                document_id TEXT NOT NULL,
                page_num INTEGER NOT NULL,
                text TEXT,
                created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
                FOREIGN KEY(document_id) REFERENCES documents(id) ON DELETE CASCADE,
                UNIQUE(document_id, page_num)
        );`,
	`CREATE TABLE IF NOT EXISTS evidence_links (
                id TEXT PRIMARY KEY,
                control_id TEXT NOT NULL,
                requirement_id TEXT,
                document_id TEXT NOT NULL,
                note TEXT,
                created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
                FOREIGN KEY(control_id) REFERENCES controls(id) ON DELETE CASCADE,
                FOREIGN KEY(requirement_id) REFERENCES requirements(id) ON DELETE SET NULL,
                FOREIGN KEY(document_id) REFERENCES documents(id) ON DELETE CASCADE,
                UNIQUE(control_id, document_id, requirement_id)
        );`,
	`CREATE TABLE IF NOT EXISTS document_control_links (
                id TEXT PRIMARY KEY,
                document_id TEXT NOT NULL,
                control_id TEXT NOT NULL,
                confidence REAL NOT NULL DEFAULT 0.0,
                reasoning TEXT,
                created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
                updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
                FOREIGN KEY(document_id) REFERENCES documents(id) ON DELETE CASCADE,
                FOREIGN KEY(control_id) REFERENCES controls(id) ON DELETE CASCADE,
                UNIQUE(document_id, control_id)
        );`,
	`CREATE TABLE IF NOT EXISTS scans (
                id TEXT PRIMARY KEY,
                control_id TEXT NOT NULL,
                status TEXT NOT NULL DEFAULT 'pending',
                model TEXT,
                progress_percentage INTEGER NOT NULL DEFAULT 0,
                current_step TEXT NOT NULL DEFAULT 'Initializing...',
                total_requirements INTEGER NOT NULL DEFAULT 0,
                processed_requirements INTEGER NOT NULL DEFAULT 0,
                created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
                updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
                FOREIGN KEY(control_id) REFERENCES controls(id) ON DELETE CASCADE
        );`,
	`CREATE TABLE IF NOT EXISTS scan_results (
                id TEXT PRIMARY KEY,
                scan_id TEXT NOT NULL,
                requirement_id TEXT NOT NULL,
                position INTEGER NOT NULL DEFAULT 0,
                outcome TEXT NOT NULL,
                confidence REAL NOT NULL DEFAULT 0.0,
                rationale TEXT,
                citations_json TEXT,
                created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
                FOREIGN KEY(scan_id) REFERENCES scans(id) ON DELETE CASCADE,
                FOREIGN KEY(requirement_id) REFERENCES requirements(id) ON DELETE CASCADE
        );`,
	`CREATE TABLE IF NOT EXISTS gaps (
                id TEXT PRIMARY KEY,
                scan_id TEXT NOT NULL,
                requirement_id TEXT NOT NULL,
                position INTEGER NOT NULL DEFAULT 0,
                gap_summary TEXT NOT NULL,
                recommended_actions_json TEXT,
                created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
                FOREIGN KEY(scan_id) REFERENCES scans(id) ON DELETE CASCADE,
                FOREIGN KEY(requirement_id) REFERENCES requirements(id) ON DELETE CASCADE
        );`,
	`CREATE TABLE IF NOT EXISTS settings (
                id INTEGER PRIMARY KEY CHECK (id = 1),
                ai_provider TEXT NOT NULL DEFAULT 'openai',
                openai_api_key TEXT,
                openai_model TEXT,
                openai_endpoint TEXT,
                ollama_endpoint TEXT,
                ollama_model TEXT,
                ollama_context_size INTEGER NOT NULL DEFAULT 131072,
                min_confidence_threshold REAL NOT NULL DEFAULT 0.90,
                dual_validation INTEGER NOT NULL DEFAULT 0,
                updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
        );`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
                id TEXT PRIMARY KEY,
                action TEXT NOT NULL,
                entity_type TEXT NOT NULL,
                entity_id TEXT NOT NULL,
                detail TEXT,
                created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
        );`,
	`CREATE INDEX IF NOT EXISTS idx_controls_framework ON controls(framework_id);`,
	`CREATE INDEX IF NOT EXISTS idx_requirements_control ON requirements(control_id);`,
	`CREATE INDEX IF NOT EXISTS idx_pages_document ON document_pages(document_id, page_num);`,
	`CREATE INDEX IF NOT EXISTS idx_evidence_control ON evidence_links(control_id);`,
	`CREATE INDEX IF NOT EXISTS idx_evidence_document ON evidence_links(document_id);`,
	`CREATE INDEX IF NOT EXISTS idx_doc_control_link_document ON document_control_links(document_id);`,
	`CREATE INDEX IF NOT EXISTS idx_doc_control_link_control ON document_control_links(control_id);`,
	`CREATE INDEX IF NOT EXISTS idx_doc_control_link_confidence ON document_control_links(confidence);`,
	`CREATE INDEX IF NOT EXISTS idx_scans_control_created ON scans(control_id, created_at);`,
	`CREATE INDEX IF NOT EXISTS idx_scan_results_scan ON scan_results(scan_id);`,
	`CREATE INDEX IF NOT EXISTS idx_gaps_scan ON gaps(scan_id);`,
}
