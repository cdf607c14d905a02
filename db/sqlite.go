package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"accidentlab/pipeline"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

var ErrNotInitialized = errors.New("database not initialized")

const schema = `
    CREATE TABLE IF NOT EXISTS records (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        state TEXT NOT NULL,
        year INTEGER NOT NULL,
        month TEXT NOT NULL,
        month_num INTEGER NOT NULL,
        state_code INTEGER NOT NULL,
        accident_count INTEGER NOT NULL,
        UNIQUE(state, year, month_num)
    );
    CREATE TABLE IF NOT EXISTS training_log (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        run_id TEXT NOT NULL,
        model_name VARCHAR(50) NOT NULL,
        mae REAL NOT NULL,
        r2 REAL NOT NULL,
        params TEXT,
        data_points INTEGER NOT NULL,
        duration_ms INTEGER DEFAULT 0,
        trained_at DATETIME NOT NULL
    );
    CREATE TABLE IF NOT EXISTS predictions (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        state TEXT NOT NULL,
        year INTEGER NOT NULL,
        month_num INTEGER NOT NULL,
        predicted INTEGER NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );
    CREATE INDEX IF NOT EXISTS idx_records_state ON records(state);
    CREATE INDEX IF NOT EXISTS idx_training_log_run ON training_log(run_id);
    `

// Store SQLite 存储：长表记录、训练日志与预测日志
type Store struct {
	db *sql.DB
}

// Open 打开数据库并建表；wal 为 true 时启用 WAL
func Open(path string, wal bool) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir failed: %w", err)
		}
	}

	dsn := path
	if wal {
		dsn += "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	} else {
		dsn += "?_busy_timeout=5000"
	}

	database, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database failed: %w", err)
	}
	database.SetMaxOpenConns(1)

	if _, err := database.Exec(schema); err != nil {
		database.Close()
		return nil, fmt.Errorf("create tables failed: %w", err)
	}
	return &Store{db: database}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveRecords 在一个事务中用新数据集替换全部长表记录；州编码随数据集变化，旧记录不能保留
func (s *Store) SaveRecords(ctx context.Context, records []pipeline.Record) error {
	if s == nil || s.db == nil {
		return ErrNotInitialized
	}
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM records`); err != nil {
		tx.Rollback()
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO records (state, year, month, month_num, state_code, accident_count)
        VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, r.State, r.Year, r.Month, r.MonthNum, r.StateCode, r.AccidentCount); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// QueryRecords 查询某州的记录，按年、月排序；state 为空时返回全部
func (s *Store) QueryRecords(ctx context.Context, state string) ([]pipeline.Record, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotInitialized
	}
	query := `
        SELECT state, year, month, month_num, state_code, accident_count
        FROM records`
	var args []interface{}
	if state != "" {
		query += ` WHERE state = ?`
		args = append(args, state)
	}
	query += ` ORDER BY year, month_num, state`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []pipeline.Record
	for rows.Next() {
		var r pipeline.Record
		if err := rows.Scan(&r.State, &r.Year, &r.Month, &r.MonthNum, &r.StateCode, &r.AccidentCount); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

type TrainingLog struct {
	RunID      string        `json:"run_id"`
	ModelName  string        `json:"model_name"`
	MAE        float64       `json:"mae"`
	R2         float64       `json:"r2"`
	Params     string        `json:"params"`
	DataPoints int           `json:"data_points"`
	Duration   time.Duration `json:"duration"`
	TrainedAt  time.Time     `json:"trained_at"`
}

// NewRunID 一次训练的标识，同一次训练的多个模型共用
func NewRunID() string {
	return uuid.NewString()
}

// SaveTrainingRun 写入一次训练的所有模型结果
func (s *Store) SaveTrainingRun(ctx context.Context, logs []TrainingLog) error {
	if s == nil || s.db == nil {
		return ErrNotInitialized
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, l := range logs {
		if _, err := uuid.Parse(l.RunID); err != nil {
			tx.Rollback()
			return fmt.Errorf("invalid run id %q: %w", l.RunID, err)
		}
		_, err := tx.ExecContext(ctx, `
            INSERT INTO training_log (run_id, model_name, mae, r2, params, data_points, duration_ms, trained_at)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			l.RunID, l.ModelName, l.MAE, l.R2, l.Params, l.DataPoints, l.Duration.Milliseconds(), l.TrainedAt.UTC())
		if err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// LoadTrainingLog 最近的训练日志，limit <= 0 表示全部
func (s *Store) LoadTrainingLog(ctx context.Context, limit int) ([]TrainingLog, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotInitialized
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT run_id, model_name, mae, r2, COALESCE(params, ''), data_points, duration_ms, trained_at
        FROM training_log
        ORDER BY trained_at DESC, id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]TrainingLog, 0)
	for rows.Next() {
		var log TrainingLog
		var durationMS int64
		if err := rows.Scan(&log.RunID, &log.ModelName, &log.MAE, &log.R2, &log.Params,
			&log.DataPoints, &durationMS, &log.TrainedAt); err != nil {
			return nil, err
		}
		log.Duration = time.Duration(durationMS) * time.Millisecond
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

// SavePrediction 记录一次预测
func (s *Store) SavePrediction(ctx context.Context, state string, year, month, predicted int) error {
	if s == nil || s.db == nil {
		return ErrNotInitialized
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO predictions (state, year, month_num, predicted)
        VALUES (?, ?, ?, ?)`, state, year, month, predicted)
	return err
}

// CountPredictions 已记录的预测数
func (s *Store) CountPredictions(ctx context.Context) (int, error) {
	if s == nil || s.db == nil {
		return 0, ErrNotInitialized
	}
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM predictions`).Scan(&n)
	return n, err
}
