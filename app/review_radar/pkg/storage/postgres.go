package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	"github.com/iWorld-y/review_radar/app/review_radar/pkg/config"
	"github.com/iWorld-y/review_radar/app/review_radar/pkg/report"
)

// Storage 将趋势报告保存到 PostgreSQL
type Storage struct {
	db *sql.DB
}

func NewStorage(cfg config.DBConfig) (*Storage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Storage{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS trend_reports (
			id SERIAL PRIMARY KEY,
			analysis_id TEXT NOT NULL,
			app_url TEXT NOT NULL,
			app_title TEXT,
			target_date DATE NOT NULL,
			topic_count INTEGER NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS trend_points (
			id SERIAL PRIMARY KEY,
			report_id INTEGER REFERENCES trend_reports(id) ON DELETE CASCADE,
			topic TEXT NOT NULL,
			day DATE NOT NULL,
			frequency INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trend_reports_analysis ON trend_reports(analysis_id)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return err
		}
	}
	return nil
}

// Ensure Storage implements report.Sink
var _ report.Sink = (*Storage)(nil)

// Name implements report.Sink
func (s *Storage) Name() string { return "postgres" }

// Write implements report.Sink，报告和所有数据点在同一个事务里写入
func (s *Storage) Write(ctx context.Context, t *report.Table) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}

	var reportID int
	err = tx.QueryRowContext(ctx,
		`INSERT INTO trend_reports (analysis_id, app_url, app_title, target_date, topic_count, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		t.AnalysisID, t.AppURL, removeNullBytes(t.AppTitle), t.TargetDate, len(t.Topics), t.GeneratedAt,
	).Scan(&reportID)
	if err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			err = fmt.Errorf("%w: %v", err, rerr)
		}
		return "", err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO trend_points (report_id, topic, day, frequency) VALUES ($1, $2, $3, $4)`)
	if err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			err = fmt.Errorf("%w: %v", err, rerr)
		}
		return "", err
	}
	defer stmt.Close()

	for _, p := range Points(t) {
		if _, err := stmt.ExecContext(ctx, reportID, p.Topic, p.Date, p.Frequency); err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				err = fmt.Errorf("%w: %v", err, rerr)
			}
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return fmt.Sprintf("postgres://trend_reports/%d", reportID), nil
}

// Point 一行 trend_points 记录
type Point struct {
	Topic     string
	Date      string
	Frequency int
}

// Points 将报告表展开为按话题、日期排列的数据点
func Points(t *report.Table) []Point {
	points := make([]Point, 0, len(t.Topics)*len(t.Dates))
	for _, topic := range t.Topics {
		for i, d := range t.Dates {
			points = append(points, Point{Topic: topic, Date: d, Frequency: t.Counts[topic][i]})
		}
	}
	return points
}

func removeNullBytes(s string) string {
	return strings.ReplaceAll(s, "\x00", "")
}
