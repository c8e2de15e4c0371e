package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps records in a SQLite table named after the collection.
type SQLiteStore struct {
	db    *sql.DB
	table string
}

const createPredictionsTable = `
CREATE TABLE IF NOT EXISTS %[1]s (
	prediction_id TEXT PRIMARY KEY,
	company TEXT NOT NULL,
	input_features TEXT NOT NULL,
	output_prediction REAL NOT NULL,
	price_formatted TEXT NOT NULL,
	created_ns INTEGER NOT NULL,
	updated_ns INTEGER
);
CREATE INDEX IF NOT EXISTS idx_%[1]s_created ON %[1]s(created_ns);
CREATE INDEX IF NOT EXISTS idx_%[1]s_company ON %[1]s(company, created_ns);
CREATE INDEX IF NOT EXISTS idx_%[1]s_price ON %[1]s(output_prediction);
`

const selectColumns = `prediction_id, input_features, output_prediction, price_formatted, created_ns, updated_ns`

// NewSQLiteStore opens (or creates) predictions.sqlite inside dir and runs
// auto-migration.
func NewSQLiteStore(dir, collection string) (*SQLiteStore, error) {
	dbPath := filepath.Join(dir, "predictions.sqlite")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open predictions db: %w", err)
	}
	// one writer at a time avoids SQLITE_BUSY between pool connections
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(fmt.Sprintf(createPredictionsTable, collection)); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate predictions db: %w", err)
	}

	return &SQLiteStore{db: db, table: collection}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		rec       Record
		input     string
		createdNs int64
		updatedNs sql.NullInt64
	)
	if err := row.Scan(&rec.PredictionID, &input, &rec.OutputPrediction, &rec.PriceFormatted, &createdNs, &updatedNs); err != nil {
		return Record{}, err
	}
	if err := json.Unmarshal([]byte(input), &rec.InputFeatures); err != nil {
		return Record{}, fmt.Errorf("decode input features of %s: %w", rec.PredictionID, err)
	}
	rec.Timestamp = time.Unix(0, createdNs).UTC()
	if updatedNs.Valid {
		t := time.Unix(0, updatedNs.Int64).UTC()
		rec.UpdatedAt = &t
	}
	return rec, nil
}

func (s *SQLiteStore) query(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query predictions: %w", err)
	}
	defer rows.Close()

	out := make([]Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// sqlLimit maps a non-positive limit to SQLite's "no limit".
func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

func (s *SQLiteStore) Insert(ctx context.Context, rec Record) (string, error) {
	prepareInsert(&rec)

	input, err := json.Marshal(rec.InputFeatures)
	if err != nil {
		return "", fmt.Errorf("marshal input features: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (prediction_id, company, input_features, output_prediction, price_formatted, created_ns)
		 VALUES (?, ?, ?, ?, ?, ?)`, s.table),
		rec.PredictionID, rec.InputFeatures.Company, string(input), rec.OutputPrediction, rec.PriceFormatted,
		rec.Timestamp.UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("insert prediction: %w", err)
	}
	return rec.PredictionID, nil
}

func (s *SQLiteStore) FindByID(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE prediction_id = ?`, selectColumns, s.table), id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find prediction: %w", err)
	}
	return &rec, nil
}

func (s *SQLiteStore) FindAll(ctx context.Context, limit, skip int) ([]Record, error) {
	return s.query(ctx,
		fmt.Sprintf(`SELECT %s FROM %s ORDER BY created_ns DESC, prediction_id DESC LIMIT ? OFFSET ?`, selectColumns, s.table),
		sqlLimit(limit), max(skip, 0))
}

func (s *SQLiteStore) FindByCompany(ctx context.Context, company string, limit int) ([]Record, error) {
	return s.query(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE company = ? ORDER BY created_ns DESC, prediction_id DESC LIMIT ?`, selectColumns, s.table),
		company, sqlLimit(limit))
}

func (s *SQLiteStore) FindByPriceRange(ctx context.Context, minPrice, maxPrice float64, limit int) ([]Record, error) {
	return s.query(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE output_prediction >= ? AND output_prediction <= ?
		 ORDER BY created_ns DESC, prediction_id DESC LIMIT ?`, selectColumns, s.table),
		minPrice, maxPrice, sqlLimit(limit))
}

func (s *SQLiteStore) Update(ctx context.Context, id string, upd RecordUpdate) (*Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE prediction_id = ?`, selectColumns, s.table), id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load prediction: %w", err)
	}

	upd.apply(&rec, time.Now().UTC())

	input, err := json.Marshal(rec.InputFeatures)
	if err != nil {
		return nil, fmt.Errorf("marshal input features: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET company = ?, input_features = ?, output_prediction = ?, price_formatted = ?, updated_ns = ?
		 WHERE prediction_id = ?`, s.table),
		rec.InputFeatures.Company, string(input), rec.OutputPrediction, rec.PriceFormatted, rec.UpdatedAt.UnixNano(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update prediction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}
	return &rec, nil
}

func (s *SQLiteStore) exec(ctx context.Context, query string, args ...any) (int, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) (bool, error) {
	n, err := s.exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE prediction_id = ?`, s.table), id)
	if err != nil {
		return false, fmt.Errorf("delete prediction: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) DeleteByCompany(ctx context.Context, company string) (int, error) {
	n, err := s.exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE company = ?`, s.table), company)
	if err != nil {
		return 0, fmt.Errorf("delete predictions by company: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	n, err := s.exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE created_ns < ?`, s.table), cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("delete old predictions: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count predictions: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) CompanyStats(ctx context.Context) ([]CompanyStats, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT company, COUNT(*), AVG(output_prediction), MIN(output_prediction), MAX(output_prediction)
		 FROM %s GROUP BY company`, s.table))
	if err != nil {
		return nil, fmt.Errorf("company stats: %w", err)
	}
	defer rows.Close()

	out := make([]CompanyStats, 0)
	for rows.Next() {
		var cs CompanyStats
		if err := rows.Scan(&cs.Company, &cs.Count, &cs.AvgPrice, &cs.MinPrice, &cs.MaxPrice); err != nil {
			return nil, fmt.Errorf("scan company stats: %w", err)
		}
		out = append(out, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortCompanyStats(out)
	return out, nil
}

func (s *SQLiteStore) PriceStats(ctx context.Context) (PriceStats, error) {
	var (
		ps    PriceStats
		avgSq float64
	)
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT COUNT(*), COALESCE(AVG(output_prediction), 0), COALESCE(MIN(output_prediction), 0),
		 COALESCE(MAX(output_prediction), 0), COALESCE(AVG(output_prediction * output_prediction), 0)
		 FROM %s`, s.table)).Scan(&ps.TotalPredictions, &ps.AvgPrice, &ps.MinPrice, &ps.MaxPrice, &avgSq)
	if err != nil {
		return PriceStats{}, fmt.Errorf("price stats: %w", err)
	}

	ps.StdDevPrice = math.Sqrt(math.Max(0, avgSq-ps.AvgPrice*ps.AvgPrice))
	return ps, nil
}
