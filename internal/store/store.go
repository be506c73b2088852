// Package store persists users, reports, suppliers and query history in
// Postgres. The bounded in-process report cache in the pipeline registry
// fronts this store; everything here is the durable copy.
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/mfg-agent/mfgagent/models"
)

type Store struct {
	DB *sql.DB
}

// NewWithDSN constructs the Store over an explicit Postgres DSN.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// User operations
func (s *Store) CreateUser(ctx context.Context, email, hash string) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO users (email, password_hash) VALUES ($1,$2)`, email, hash)
	return err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (id string, hash string, err error) {
	err = s.DB.QueryRowContext(ctx, `SELECT id, password_hash FROM users WHERE email=$1`, email).Scan(&id, &hash)
	return
}

// Report operations
func (s *Store) SaveReport(ctx context.Context, rec models.ReportRecord) error {
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO reports (session_id, user_id, query, product, location, report_text, suppliers_found, sources_used, elapsed_seconds, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (session_id) DO UPDATE SET report_text = EXCLUDED.report_text, suppliers_found = EXCLUDED.suppliers_found`,
		rec.SessionID, rec.UserID, rec.Query, rec.Product, rec.Location, rec.ReportText,
		rec.SuppliersFound, pq.Array(rec.SourcesUsed), rec.ElapsedSeconds, rec.CreatedAt)
	return err
}

func (s *Store) GetReport(ctx context.Context, sessionID, userID string) (models.ReportRecord, error) {
	var rec models.ReportRecord
	var sources pq.StringArray
	err := s.DB.QueryRowContext(ctx, `
SELECT session_id, user_id, query, product, location, report_text, suppliers_found, sources_used, elapsed_seconds, created_at
FROM reports WHERE session_id=$1 AND user_id=$2`, sessionID, userID).Scan(
		&rec.SessionID, &rec.UserID, &rec.Query, &rec.Product, &rec.Location, &rec.ReportText,
		&rec.SuppliersFound, &sources, &rec.ElapsedSeconds, &rec.CreatedAt)
	rec.SourcesUsed = sources
	return rec, err
}

func (s *Store) ListReports(ctx context.Context, userID string, limit int) ([]models.ReportRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT session_id, user_id, query, product, location, report_text, suppliers_found, sources_used, elapsed_seconds, created_at
FROM reports WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.ReportRecord
	for rows.Next() {
		var rec models.ReportRecord
		var sources pq.StringArray
		if err := rows.Scan(&rec.SessionID, &rec.UserID, &rec.Query, &rec.Product, &rec.Location,
			&rec.ReportText, &rec.SuppliersFound, &sources, &rec.ElapsedSeconds, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.SourcesUsed = sources
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DeleteReport removes the report and everything hanging off its session.
func (s *Store) DeleteReport(ctx context.Context, sessionID, userID string) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	res, err := tx.ExecContext(ctx, `DELETE FROM reports WHERE session_id=$1 AND user_id=$2`, sessionID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM suppliers WHERE session_id=$1`, sessionID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM history WHERE session_id=$1`, sessionID); err != nil {
		return err
	}
	return tx.Commit()
}

// Supplier operations
func (s *Store) SaveSuppliers(ctx context.Context, recs []models.SupplierRecord) error {
	if len(recs) == 0 {
		return nil
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO suppliers (id, session_id, user_id, query, name, location, products, website, contact, description, certifications, min_order, source, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
ON CONFLICT (id) DO NOTHING`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range recs {
		if _, err := stmt.ExecContext(ctx, r.ID, r.SessionID, r.UserID, r.Query, r.Name, r.Location,
			pq.Array(r.Products), r.Website, r.Contact, r.Description, pq.Array(r.Certifications),
			r.MinOrder, r.Source, r.CreatedAt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) ListSuppliers(ctx context.Context, userID string, limit int) ([]models.SupplierRecord, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, session_id, user_id, query, name, location, products, website, contact, description, certifications, min_order, source, created_at
FROM suppliers WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSuppliers(rows)
}

func (s *Store) ListSuppliersBySession(ctx context.Context, sessionID, userID string) ([]models.SupplierRecord, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, session_id, user_id, query, name, location, products, website, contact, description, certifications, min_order, source, created_at
FROM suppliers WHERE session_id=$1 AND user_id=$2 ORDER BY created_at`, sessionID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSuppliers(rows)
}

func scanSuppliers(rows *sql.Rows) ([]models.SupplierRecord, error) {
	var out []models.SupplierRecord
	for rows.Next() {
		var r models.SupplierRecord
		var products, certs pq.StringArray
		if err := rows.Scan(&r.ID, &r.SessionID, &r.UserID, &r.Query, &r.Name, &r.Location,
			&products, &r.Website, &r.Contact, &r.Description, &certs, &r.MinOrder,
			&r.Source, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Products = products
		r.Certifications = certs
		out = append(out, r)
	}
	return out, rows.Err()
}

// History operations
func (s *Store) AppendHistory(ctx context.Context, entry models.HistoryEntry) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO history (user_id, query, session_id, created_at) VALUES ($1,$2,$3,$4)`,
		entry.UserID, entry.Query, entry.SessionID, entry.CreatedAt)
	return err
}

// History returns the user's most recent queries, one row per distinct query.
func (s *Store) History(ctx context.Context, userID string, limit int) ([]models.HistoryEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT user_id, query, session_id, created_at FROM (
  SELECT DISTINCT ON (query) user_id, query, session_id, created_at
  FROM history WHERE user_id=$1 ORDER BY query, created_at DESC
) latest
ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.HistoryEntry
	for rows.Next() {
		var e models.HistoryEntry
		if err := rows.Scan(&e.UserID, &e.Query, &e.SessionID, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UserStats summarizes one user's activity.
type UserStats struct {
	Reports     int       `json:"reports"`
	Suppliers   int       `json:"suppliers"`
	Queries     int       `json:"queries"`
	LastQueryAt time.Time `json:"last_query_at"`
}

func (s *Store) Stats(ctx context.Context, userID string) (UserStats, error) {
	var st UserStats
	var last sql.NullTime
	err := s.DB.QueryRowContext(ctx, `
SELECT
  (SELECT COUNT(*) FROM reports WHERE user_id=$1),
  (SELECT COUNT(*) FROM suppliers WHERE user_id=$1),
  (SELECT COUNT(*) FROM history WHERE user_id=$1),
  (SELECT MAX(created_at) FROM history WHERE user_id=$1)`, userID).
		Scan(&st.Reports, &st.Suppliers, &st.Queries, &last)
	if last.Valid {
		st.LastQueryAt = last.Time
	}
	return st, err
}
