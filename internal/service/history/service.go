// Package history stores the outcome of each analysed upload.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"audiofeedback/internal/models"
	"audiofeedback/internal/storage"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

const recordColumns = `id, file_name, size, digest, status, tempo, spectral_centroid, spectral_bandwidth,
	rms, sample_rate, channels, duration, error, elapsed_ms, created_at`

// Service provides access to the analyses table.
type Service struct {
	db     *sql.DB
	driver string
}

func NewService(db *sql.DB, driver string) (*Service, error) {
	if db == nil {
		return nil, errors.New("history database required")
	}
	normalized, err := storage.NormalizeDriver(driver)
	if err != nil {
		return nil, err
	}
	return &Service{db: db, driver: normalized}, nil
}

func (s *Service) q(query string) string {
	return storage.Rebind(s.driver, query)
}

// RecordAnalysis inserts rec and fills in its ID and CreatedAt.
func (s *Service) RecordAnalysis(ctx context.Context, rec *models.AnalysisRecord) error {
	if rec == nil {
		return errors.New("record is required")
	}
	if rec.Status == "" {
		rec.Status = models.AnalysisOK
		if rec.Error != "" {
			rec.Status = models.AnalysisError
		}
	}
	rec.CreatedAt = time.Now().UTC()

	query := `INSERT INTO analyses (file_name, size, digest, status, tempo, spectral_centroid, spectral_bandwidth,
		rms, sample_rate, channels, duration, error, elapsed_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	args := []interface{}{
		rec.FileName, rec.Size, rec.Digest, string(rec.Status),
		rec.Tempo, rec.SpectralCentroid, rec.SpectralBandwidth, rec.RMS,
		rec.SampleRate, rec.Channels, rec.Duration, rec.Error, rec.ElapsedMS, rec.CreatedAt,
	}

	if s.driver == storage.DriverPostgres {
		if err := s.db.QueryRowContext(ctx, s.q(query+` RETURNING id`), args...).Scan(&rec.ID); err != nil {
			return fmt.Errorf("insert analysis: %w", err)
		}
		return nil
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("analysis id: %w", err)
	}
	rec.ID = id
	return nil
}

// ListAnalyses returns the most recent records first. limit is clamped to
// [1, MaxListLimit]; zero means DefaultListLimit.
func (s *Service) ListAnalyses(ctx context.Context, limit int) ([]models.AnalysisRecord, error) {
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT `+recordColumns+` FROM analyses ORDER BY created_at DESC, id DESC LIMIT ?`),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	records := make([]models.AnalysisRecord, 0, limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// GetAnalysis returns sql.ErrNoRows when id does not exist.
func (s *Service) GetAnalysis(ctx context.Context, id int64) (*models.AnalysisRecord, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+recordColumns+` FROM analyses WHERE id = ?`), id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, err
	}
	return rec, nil
}

// DeleteAnalysis removes one record and returns it, or sql.ErrNoRows.
func (s *Service) DeleteAnalysis(ctx context.Context, id int64) (*models.AnalysisRecord, error) {
	if id <= 0 {
		return nil, sql.ErrNoRows
	}
	rec, err := s.GetAnalysis(ctx, id)
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM analyses WHERE id = ?`), id)
	if err != nil {
		return nil, fmt.Errorf("delete analysis: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("analysis rows affected: %w", err)
	}
	if affected == 0 {
		return nil, sql.ErrNoRows
	}
	return rec, nil
}

// Ping is used by the health check.
func (s *Service) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (*models.AnalysisRecord, error) {
	var rec models.AnalysisRecord
	var status string
	err := row.Scan(&rec.ID, &rec.FileName, &rec.Size, &rec.Digest, &status,
		&rec.Tempo, &rec.SpectralCentroid, &rec.SpectralBandwidth, &rec.RMS,
		&rec.SampleRate, &rec.Channels, &rec.Duration, &rec.Error, &rec.ElapsedMS, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan analysis: %w", err)
	}
	rec.Status = models.AnalysisStatus(status)
	return &rec, nil
}
