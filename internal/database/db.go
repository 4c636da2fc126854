package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/lib/pq"

	"github.com/Alias1177/SanityCheck/internal/model"
)

// DB represents a database connection
type DB struct {
	*sql.DB
}

// ConnectionParams holds PostgreSQL connection parameters
type ConnectionParams struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN renders the lib/pq connection string. Values are quoted so passwords
// with spaces or quotes survive.
func (p ConnectionParams) DSN() string {
	pairs := []struct{ key, value string }{
		{"host", p.Host},
		{"port", p.Port},
		{"user", p.User},
		{"password", p.Password},
		{"dbname", p.DBName},
		{"sslmode", p.SSLMode},
	}
	parts := make([]string, 0, len(pairs))
	for _, kv := range pairs {
		if kv.value == "" {
			continue
		}
		parts = append(parts, kv.key+"="+quoteValue(kv.value))
	}
	return strings.Join(parts, " ")
}

func quoteValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// New creates a new database connection
func New(ctx context.Context, params ConnectionParams) (*DB, error) {
	connector, err := pq.NewConnector(params.DSN())
	if err != nil {
		return nil, fmt.Errorf("postgres connector: %w", err)
	}
	db := sql.OpenDB(connector)

	// Check connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	// Create tables if they don't exist
	if err := createTables(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{db}, nil
}

// createTables creates the necessary tables if they don't exist
func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS anomaly_reports (
			id BIGSERIAL PRIMARY KEY,
			check_type TEXT NOT NULL,
			epoch BIGINT NOT NULL,
			historical_count INTEGER NOT NULL,
			anomaly_detected BOOLEAN NOT NULL,
			anomalous_fields TEXT[] NOT NULL,
			thresholds JSONB NOT NULL,
			results JSONB NOT NULL,
			report TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS anomaly_reports_type_epoch_idx
		ON anomaly_reports (check_type, epoch)
	`)
	return err
}

// ReportRecord is a persisted anomaly report
type ReportRecord struct {
	ID              int64
	CheckType       string
	Epoch           uint64
	HistoricalCount int
	AnomalyDetected bool
	AnomalousFields []string
	Thresholds      []byte
	Results         []byte
	Report          string
	CreatedAt       time.Time
}

// NewReportRecord flattens a report into its stored form
func NewReportRecord(checkType string, report model.AnomalyReport, now time.Time) (ReportRecord, error) {
	thresholds, err := json.Marshal(report.Thresholds)
	if err != nil {
		return ReportRecord{}, fmt.Errorf("encode thresholds: %w", err)
	}
	results, err := json.Marshal(report.Results)
	if err != nil {
		return ReportRecord{}, fmt.Errorf("encode results: %w", err)
	}

	anomalous := []string{}
	for _, r := range report.Results {
		if r.IsAnomaly {
			anomalous = append(anomalous, r.Field)
		}
	}

	return ReportRecord{
		CheckType:       checkType,
		Epoch:           report.Epoch,
		HistoricalCount: report.HistoricalCount,
		AnomalyDetected: report.AnomalyDetected,
		AnomalousFields: anomalous,
		Thresholds:      thresholds,
		Results:         results,
		Report:          report.Report,
		CreatedAt:       now.UTC(),
	}, nil
}

// SaveReport stores a report for later audit and returns its id
func (db *DB) SaveReport(ctx context.Context, checkType string, report model.AnomalyReport) (int64, error) {
	rec, err := NewReportRecord(checkType, report, time.Now())
	if err != nil {
		return 0, err
	}

	var id int64
	err = db.QueryRowContext(ctx, `
		INSERT INTO anomaly_reports (
			check_type, epoch, historical_count, anomaly_detected, anomalous_fields,
			thresholds, results, report, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`,
		rec.CheckType, int64(rec.Epoch), rec.HistoricalCount, rec.AnomalyDetected, pq.Array(rec.AnomalousFields),
		string(rec.Thresholds), string(rec.Results), rec.Report, rec.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert anomaly report: %w", err)
	}
	return id, nil
}

// RecentReports lists the latest stored reports of a check type, newest first.
// An empty checkType lists all types.
func (db *DB) RecentReports(ctx context.Context, checkType string, limit int) ([]ReportRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT
			id, check_type, epoch, historical_count, anomaly_detected, anomalous_fields,
			thresholds, results, report, created_at
		FROM anomaly_reports
		WHERE $1 = '' OR check_type = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, checkType, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReportRecord
	for rows.Next() {
		var rec ReportRecord
		var epoch int64
		if err := rows.Scan(
			&rec.ID, &rec.CheckType, &epoch, &rec.HistoricalCount, &rec.AnomalyDetected,
			pq.Array(&rec.AnomalousFields), &rec.Thresholds, &rec.Results, &rec.Report, &rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		rec.Epoch = uint64(epoch)
		out = append(out, rec)
	}
	return out, rows.Err()
}
