package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/ConnorEMcclanahan/PhillipsWall-sub000/internal/models"
)

const keyLastSeenAnswer = "last_seen_answer_id"

// SQLiteStore keeps the little state a kiosk needs across restarts: the last
// answer id it has seen, the last good answer list, and who submitted what.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewSQLiteStore(db *sql.DB, logger *zap.Logger) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("apply sqlite pragma %q: %w", stmt, err)
		}
	}
	return &SQLiteStore{db: db, logger: logger}, nil
}

// Open opens (creating if needed) the sqlite file at path and migrates it.
func Open(path, migrationsDir string, logger *zap.Logger) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?cache=shared&_busy_timeout=5000", path)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer; sqlite serializes anyway
	sqlDB.SetMaxOpenConns(1)
	if err := RunMigrations(sqlDB, migrationsDir); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	st, err := NewSQLiteStore(sqlDB, logger)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return st, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) getState(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kiosk_state WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return v, nil
}

func (s *SQLiteStore) setState(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kiosk_state (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// LastSeenAnswer returns the id the highlight tracker saw last, or "".
func (s *SQLiteStore) LastSeenAnswer(ctx context.Context) (string, error) {
	return s.getState(ctx, keyLastSeenAnswer)
}

func (s *SQLiteStore) SetLastSeenAnswer(ctx context.Context, id string) error {
	return s.setState(ctx, keyLastSeenAnswer, id)
}

// RememberLastSeen is a fire-and-forget adapter for the tracker callback.
func (s *SQLiteStore) RememberLastSeen(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.SetLastSeenAnswer(ctx, id); err != nil {
		s.logger.Warn("persist last seen answer", zap.String("answer_id", id), zap.Error(err))
	}
}

// SaveAnswers replaces the cached answer list.
func (s *SQLiteStore) SaveAnswers(ctx context.Context, answers []models.AnswerPoint, fetchedAt time.Time) error {
	b, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO answer_snapshot (id, payload, answers, fetched_at) VALUES (1, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, answers = excluded.answers, fetched_at = excluded.fetched_at`,
		string(b), len(answers), fetchedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save answers: %w", err)
	}
	return nil
}

// LoadAnswers returns the cached answer list; empty when nothing was cached.
func (s *SQLiteStore) LoadAnswers(ctx context.Context) ([]models.AnswerPoint, time.Time, error) {
	var payload, at string
	err := s.db.QueryRowContext(ctx, `SELECT payload, fetched_at FROM answer_snapshot WHERE id = 1`).Scan(&payload, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("load answers: %w", err)
	}
	var answers []models.AnswerPoint
	if err := json.Unmarshal([]byte(payload), &answers); err != nil {
		return nil, time.Time{}, fmt.Errorf("decode answers: %w", err)
	}
	fetchedAt, err := time.Parse(time.RFC3339Nano, at)
	if err != nil {
		s.logger.Warn("cached snapshot has bad timestamp", zap.String("fetched_at", at))
		fetchedAt = time.Time{}
	}
	return answers, fetchedAt, nil
}

// RecordSubmission notes which kiosk submitted an answer.
func (s *SQLiteStore) RecordSubmission(ctx context.Context, answerID, kioskID, questionID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO submission_log (answer_id, kiosk_id, question_id, submitted_at) VALUES (?, ?, ?, ?)`,
		answerID, kioskID, questionID, at.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record submission: %w", err)
	}
	return nil
}

// SubmissionCounts returns submissions per kiosk since the given time.
func (s *SQLiteStore) SubmissionCounts(ctx context.Context, since time.Time) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kiosk_id, COUNT(*) FROM submission_log WHERE submitted_at >= ? GROUP BY kiosk_id`,
		since.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("count submissions: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := map[string]int{}
	for rows.Next() {
		var kiosk string
		var n int
		if err := rows.Scan(&kiosk, &n); err != nil {
			return nil, err
		}
		out[kiosk] = n
	}
	return out, rows.Err()
}
