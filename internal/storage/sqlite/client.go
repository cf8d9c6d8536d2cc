package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/dataset-eval/backend/internal/storage/models"
	"github.com/dataset-eval/backend/pkg/logger"
)

var ErrNotFound = errors.New("sqlite: record not found")

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) Ping() error {
	return c.db.Ping()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS evaluation_runs (
		id TEXT PRIMARY KEY,
		source TEXT,
		total_records INTEGER NOT NULL,
		quality_issues INTEGER NOT NULL,
		pii_entries INTEGER NOT NULL,
		quality_score REAL NOT NULL,
		compliance_score REAL NOT NULL,
		quality_threshold REAL NOT NULL,
		compliance_threshold REAL NOT NULL,
		checks TEXT,
		fit_for_purpose INTEGER NOT NULL,
		top_issues TEXT,
		report TEXT,
		flagged_csv TEXT,
		duration_ms INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON evaluation_runs(created_at);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) InsertRun(run *models.EvaluationRun) error {
	query := `
		INSERT INTO evaluation_runs (id, source, total_records, quality_issues, pii_entries,
			quality_score, compliance_score, quality_threshold, compliance_threshold, checks,
			fit_for_purpose, top_issues, report, flagged_csv, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	checksJSON, err := json.Marshal(run.Checks)
	if err != nil {
		return fmt.Errorf("failed to marshal checks: %w", err)
	}
	issuesJSON, err := json.Marshal(run.TopIssues)
	if err != nil {
		return fmt.Errorf("failed to marshal top issues: %w", err)
	}

	fit := 0
	if run.FitForPurpose {
		fit = 1
	}

	_, err = c.db.Exec(
		query,
		run.ID,
		run.Source,
		run.TotalRecords,
		run.QualityIssues,
		run.PIIEntries,
		run.QualityScore,
		run.ComplianceScore,
		run.QualityThreshold,
		run.ComplianceThreshold,
		string(checksJSON),
		fit,
		string(issuesJSON),
		run.Report,
		run.FlaggedCSV,
		run.DurationMS,
		run.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert evaluation run: %w", err)
	}

	logger.Info("Evaluation run recorded",
		zap.String("run_id", run.ID),
		zap.Int("records", run.TotalRecords),
		zap.Bool("fit_for_purpose", run.FitForPurpose),
	)

	return nil
}

const runColumns = `id, source, total_records, quality_issues, pii_entries, quality_score,
	compliance_score, quality_threshold, compliance_threshold, checks, fit_for_purpose,
	top_issues, report, flagged_csv, duration_ms, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*models.EvaluationRun, error) {
	var (
		run                    models.EvaluationRun
		checksJSON, issuesJSON sql.NullString
		source, report, csv    sql.NullString
		fit                    int
		createdAt              int64
	)

	err := row.Scan(
		&run.ID,
		&source,
		&run.TotalRecords,
		&run.QualityIssues,
		&run.PIIEntries,
		&run.QualityScore,
		&run.ComplianceScore,
		&run.QualityThreshold,
		&run.ComplianceThreshold,
		&checksJSON,
		&fit,
		&issuesJSON,
		&report,
		&csv,
		&run.DurationMS,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	if checksJSON.Valid {
		if err := json.Unmarshal([]byte(checksJSON.String), &run.Checks); err != nil {
			return nil, fmt.Errorf("failed to unmarshal checks: %w", err)
		}
	}
	if issuesJSON.Valid {
		if err := json.Unmarshal([]byte(issuesJSON.String), &run.TopIssues); err != nil {
			return nil, fmt.Errorf("failed to unmarshal top issues: %w", err)
		}
	}

	run.Source = source.String
	run.Report = report.String
	run.FlaggedCSV = csv.String
	run.FitForPurpose = fit == 1
	run.CreatedAt = time.Unix(createdAt, 0)

	return &run, nil
}

func (c *Client) GetRun(id string) (*models.EvaluationRun, error) {
	row := c.db.QueryRow(`SELECT `+runColumns+` FROM evaluation_runs WHERE id = ?`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("evaluation run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get evaluation run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first.
func (c *Client) ListRuns(limit int) ([]*models.EvaluationRun, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := c.db.Query(`SELECT `+runColumns+` FROM evaluation_runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list evaluation runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.EvaluationRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan evaluation run: %w", err)
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}
