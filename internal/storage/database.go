package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/conorfennell/skillcadence/internal/domain"
	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// Times are stored as fixed-width UTC text so that string comparison in SQL
// orders them correctly.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// DB represents a wrapper around the SQL database connection.
type DB struct {
	conn *sql.DB
}

// Open creates a new database connection and ensures the schema is up to date.
func Open(dsn string) (*DB, error) {
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Execute the schema to create tables if they don't exist.
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{conn: db}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(t), Valid: true}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// GetCard retrieves the card for a (skill, user) pair. It returns (nil, nil)
// when no card exists yet.
func (db *DB) GetCard(ctx context.Context, skillID, userID string) (*domain.ReviewCard, error) {
	var (
		card         domain.ReviewCard
		lastReviewed sql.NullString
		nextReview   string
	)
	row := db.conn.QueryRowContext(ctx, `
		SELECT card_id, skill_id, user_id, stability, difficulty, state, reps, lapses,
		       scheduled_days, last_reviewed, next_review
		FROM cards WHERE card_id = ?
	`, domain.CardID(skillID, userID))

	err := row.Scan(
		&card.CardID,
		&card.SkillID,
		&card.UserID,
		&card.Memory.Stability,
		&card.Memory.Difficulty,
		&card.Memory.State,
		&card.Reps,
		&card.Lapses,
		&card.ScheduledDays,
		&lastReviewed,
		&nextReview,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Card not found
		}
		return nil, fmt.Errorf("failed to find card for skill %s: %w", skillID, err)
	}

	if card.NextReview, err = parseTime(nextReview); err != nil {
		return nil, fmt.Errorf("failed to parse next review for skill %s: %w", skillID, err)
	}
	if lastReviewed.Valid {
		if card.LastReviewed, err = parseTime(lastReviewed.String); err != nil {
			return nil, fmt.Errorf("failed to parse last review for skill %s: %w", skillID, err)
		}
	}
	return &card, nil
}

// PutCard inserts or replaces a card.
func (db *DB) PutCard(ctx context.Context, card *domain.ReviewCard) error {
	return putCard(ctx, db.conn, card)
}

func putCard(ctx context.Context, ex execer, card *domain.ReviewCard) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO cards (card_id, skill_id, user_id, stability, difficulty, state, reps, lapses,
		                   scheduled_days, last_reviewed, next_review)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(card_id) DO UPDATE SET
			stability = excluded.stability,
			difficulty = excluded.difficulty,
			state = excluded.state,
			reps = excluded.reps,
			lapses = excluded.lapses,
			scheduled_days = excluded.scheduled_days,
			last_reviewed = excluded.last_reviewed,
			next_review = excluded.next_review
	`,
		card.CardID,
		card.SkillID,
		card.UserID,
		card.Memory.Stability,
		card.Memory.Difficulty,
		int(card.Memory.State),
		card.Reps,
		card.Lapses,
		card.ScheduledDays,
		nullTime(card.LastReviewed),
		formatTime(card.NextReview),
	)
	if err != nil {
		return fmt.Errorf("failed to save card %s: %w", card.CardID, err)
	}
	return nil
}

// CommitReview saves the card and its skill's next review date in one transaction.
func (db *DB) CommitReview(ctx context.Context, card *domain.ReviewCard) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin review transaction: %w", err)
	}
	defer tx.Rollback()

	if err := putCard(ctx, tx, card); err != nil {
		return err
	}
	if err := setNextReviewDate(ctx, tx, card.SkillID, card.NextReview); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit review for skill %s: %w", card.SkillID, err)
	}
	return nil
}

// InsertSkill inserts a new skill.
func (db *DB) InsertSkill(ctx context.Context, skill *domain.Skill) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO skills (id, user_id, name, category, next_review_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		skill.ID,
		skill.UserID,
		skill.Name,
		skill.Category,
		formatTime(skill.NextReviewDate),
		formatTime(skill.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert skill %s: %w", skill.ID, err)
	}
	return nil
}

// GetSkill retrieves a skill by id. It returns (nil, nil) when the skill does not exist.
func (db *DB) GetSkill(ctx context.Context, skillID string) (*domain.Skill, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, user_id, name, category, next_review_date, created_at
		FROM skills WHERE id = ?
	`, skillID)

	skill, err := scanSkill(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Skill not found
		}
		return nil, fmt.Errorf("failed to find skill %s: %w", skillID, err)
	}
	return skill, nil
}

// GetCategory returns the skill's category, or "" for an unknown skill.
func (db *DB) GetCategory(ctx context.Context, skillID string) (string, error) {
	var category string
	err := db.conn.QueryRowContext(ctx, `SELECT category FROM skills WHERE id = ?`, skillID).Scan(&category)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get category for skill %s: %w", skillID, err)
	}
	return category, nil
}

// SetNextReviewDate updates a skill's next review date.
func (db *DB) SetNextReviewDate(ctx context.Context, skillID string, due time.Time) error {
	return setNextReviewDate(ctx, db.conn, skillID, due)
}

func setNextReviewDate(ctx context.Context, ex execer, skillID string, due time.Time) error {
	_, err := ex.ExecContext(ctx, `
		UPDATE skills
		SET next_review_date = ?
		WHERE id = ?
	`, formatTime(due), skillID)
	if err != nil {
		return fmt.Errorf("failed to update next review date for skill %s: %w", skillID, err)
	}
	return nil
}

// ListSkills retrieves all skills of a user, soonest review first.
func (db *DB) ListSkills(ctx context.Context, userID string) ([]domain.Skill, error) {
	return db.querySkills(ctx, `
		SELECT id, user_id, name, category, next_review_date, created_at
		FROM skills WHERE user_id = ?
		ORDER BY next_review_date, id
	`, userID)
}

// ListDueSkills retrieves every skill whose review date is at or before now.
func (db *DB) ListDueSkills(ctx context.Context, now time.Time) ([]domain.Skill, error) {
	return db.querySkills(ctx, `
		SELECT id, user_id, name, category, next_review_date, created_at
		FROM skills WHERE next_review_date <= ?
		ORDER BY user_id, next_review_date, id
	`, formatTime(now))
}

func (db *DB) querySkills(ctx context.Context, query string, args ...any) ([]domain.Skill, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query skills: %w", err)
	}
	defer rows.Close()

	var skills []domain.Skill
	for rows.Next() {
		skill, err := scanSkill(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan skill row: %w", err)
		}
		skills = append(skills, *skill)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read skill rows: %w", err)
	}
	return skills, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSkill(s scanner) (*domain.Skill, error) {
	var (
		skill              domain.Skill
		nextReview, create string
	)
	if err := s.Scan(&skill.ID, &skill.UserID, &skill.Name, &skill.Category, &nextReview, &create); err != nil {
		return nil, err
	}
	var err error
	if skill.NextReviewDate, err = parseTime(nextReview); err != nil {
		return nil, err
	}
	if skill.CreatedAt, err = parseTime(create); err != nil {
		return nil, err
	}
	return &skill, nil
}

// DeleteSkill removes a skill together with its cards and practice logs.
func (db *DB) DeleteSkill(ctx context.Context, skillID string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete for skill %s: %w", skillID, err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM practice_logs WHERE skill_id = ?`,
		`DELETE FROM cards WHERE skill_id = ?`,
		`DELETE FROM skills WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, skillID); err != nil {
			return fmt.Errorf("failed to delete skill %s: %w", skillID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete for skill %s: %w", skillID, err)
	}
	return nil
}

// AddLog appends a practice log.
func (db *DB) AddLog(ctx context.Context, log *domain.PracticeLog) error {
	var analysis sql.NullString
	if log.Analysis != nil {
		b, err := json.Marshal(log.Analysis)
		if err != nil {
			return fmt.Errorf("failed to encode analysis for log %s: %w", log.ID, err)
		}
		analysis = sql.NullString{String: string(b), Valid: true}
	}

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO practice_logs (id, skill_id, user_id, content, feeling, analysis_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		log.ID,
		log.SkillID,
		log.UserID,
		log.Content,
		string(log.Feeling),
		analysis,
		formatTime(log.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert log %s: %w", log.ID, err)
	}
	return nil
}

// ListLogs retrieves the most recent logs of a skill, newest first.
// A limit of zero or less returns every log.
func (db *DB) ListLogs(ctx context.Context, skillID string, limit int) ([]domain.PracticeLog, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, skill_id, user_id, content, feeling, analysis_json, created_at
		FROM practice_logs WHERE skill_id = ?
		ORDER BY created_at DESC, id
		LIMIT ?
	`, skillID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get logs for skill %s: %w", skillID, err)
	}
	defer rows.Close()

	var logs []domain.PracticeLog
	for rows.Next() {
		var (
			l         domain.PracticeLog
			feeling   string
			analysis  sql.NullString
			createdAt string
		)
		if err := rows.Scan(&l.ID, &l.SkillID, &l.UserID, &l.Content, &feeling, &analysis, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan log row for skill %s: %w", skillID, err)
		}
		l.Feeling = domain.Feeling(feeling)
		if l.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse log time for skill %s: %w", skillID, err)
		}
		if analysis.Valid {
			l.Analysis = &domain.AnalysisResult{}
			if err := json.Unmarshal([]byte(analysis.String), l.Analysis); err != nil {
				return nil, fmt.Errorf("failed to decode analysis for log %s: %w", l.ID, err)
			}
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log rows for skill %s: %w", skillID, err)
	}
	return logs, nil
}
