// Package kv is a BadgerDB-backed alternative to the SQLite store. Records are
// JSON documents under prefixed keys:
//
//	skill/<skillID>
//	card/<skillID>/<userID>
//	log/<skillID>/<createdAt>/<logID>
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/conorfennell/skillcadence/internal/domain"
)

const timeLayout = "2006-01-02T15:04:05.000000000Z"

// ErrSkillNotFound is returned when a write refers to a skill that does not exist.
var ErrSkillNotFound = errors.New("kv: skill not found")

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store holds skills, cards and logs in a badger database.
type Store struct {
	db *badger.DB
}

// Open opens or creates a store in dir. A nil logger silences badger.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	if dir == "" {
		return nil, errors.New("kv: path is required for persistent database")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
	}
	return open(badger.DefaultOptions(dir).WithNumVersionsToKeep(1), logger)
}

// InMemory opens a store that lives only in memory.
func InMemory(logger *slog.Logger) (*Store, error) {
	return open(badger.DefaultOptions("").WithInMemory(true), logger)
}

func open(opts badger.Options, logger *slog.Logger) (*Store, error) {
	if logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: logger})
	} else {
		opts = opts.WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func skillKey(skillID string) []byte {
	return []byte("skill/" + skillID)
}

func cardKey(skillID, userID string) []byte {
	return []byte("card/" + skillID + "/" + userID)
}

func cardPrefix(skillID string) []byte {
	return []byte("card/" + skillID + "/")
}

func logKey(l *domain.PracticeLog) []byte {
	return []byte("log/" + l.SkillID + "/" + l.CreatedAt.UTC().Format(timeLayout) + "/" + l.ID)
}

func logPrefix(skillID string) []byte {
	return []byte("log/" + skillID + "/")
}

// get decodes the value at key into v. found is false when the key is absent.
func get(txn *badger.Txn, key []byte, v any) (found bool, err error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func set(txn *badger.Txn, key []byte, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, b)
}

// GetCard returns the card for a (skill, user) pair, or (nil, nil) if there is none.
func (s *Store) GetCard(ctx context.Context, skillID, userID string) (*domain.ReviewCard, error) {
	var card domain.ReviewCard
	var found bool
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		found, err = get(txn, cardKey(skillID, userID), &card)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find card for skill %s: %w", skillID, err)
	}
	if !found {
		return nil, nil
	}
	return &card, nil
}

// PutCard inserts or replaces a card.
func (s *Store) PutCard(ctx context.Context, card *domain.ReviewCard) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return set(txn, cardKey(card.SkillID, card.UserID), card)
	})
	if err != nil {
		return fmt.Errorf("failed to save card %s: %w", card.CardID, err)
	}
	return nil
}

// CommitReview saves the card and its skill's next review date in one transaction.
func (s *Store) CommitReview(ctx context.Context, card *domain.ReviewCard) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := setNextReviewDate(txn, card.SkillID, card.NextReview); err != nil {
			return err
		}
		return set(txn, cardKey(card.SkillID, card.UserID), card)
	})
	if err != nil {
		return fmt.Errorf("failed to commit review for skill %s: %w", card.SkillID, err)
	}
	return nil
}

// InsertSkill stores a new skill.
func (s *Store) InsertSkill(ctx context.Context, skill *domain.Skill) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return set(txn, skillKey(skill.ID), skill)
	})
	if err != nil {
		return fmt.Errorf("failed to insert skill %s: %w", skill.ID, err)
	}
	return nil
}

// GetSkill returns a skill by id, or (nil, nil) if it does not exist.
func (s *Store) GetSkill(ctx context.Context, skillID string) (*domain.Skill, error) {
	var skill domain.Skill
	var found bool
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		found, err = get(txn, skillKey(skillID), &skill)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find skill %s: %w", skillID, err)
	}
	if !found {
		return nil, nil
	}
	return &skill, nil
}

// GetCategory returns the skill's category, or "" for an unknown skill.
func (s *Store) GetCategory(ctx context.Context, skillID string) (string, error) {
	skill, err := s.GetSkill(ctx, skillID)
	if err != nil || skill == nil {
		return "", err
	}
	return skill.Category, nil
}

// SetNextReviewDate updates a skill's next review date.
func (s *Store) SetNextReviewDate(ctx context.Context, skillID string, due time.Time) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return setNextReviewDate(txn, skillID, due)
	})
	if err != nil {
		return fmt.Errorf("failed to update next review date for skill %s: %w", skillID, err)
	}
	return nil
}

func setNextReviewDate(txn *badger.Txn, skillID string, due time.Time) error {
	var skill domain.Skill
	found, err := get(txn, skillKey(skillID), &skill)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrSkillNotFound, skillID)
	}
	skill.NextReviewDate = due
	return set(txn, skillKey(skillID), &skill)
}

// ListSkills returns all skills of a user, soonest review first.
func (s *Store) ListSkills(ctx context.Context, userID string) ([]domain.Skill, error) {
	skills, err := s.scanSkills(func(sk *domain.Skill) bool { return sk.UserID == userID })
	if err != nil {
		return nil, err
	}
	sort.Slice(skills, func(i, j int) bool {
		if !skills[i].NextReviewDate.Equal(skills[j].NextReviewDate) {
			return skills[i].NextReviewDate.Before(skills[j].NextReviewDate)
		}
		return skills[i].ID < skills[j].ID
	})
	return skills, nil
}

// ListDueSkills returns every skill whose review date is at or before now.
func (s *Store) ListDueSkills(ctx context.Context, now time.Time) ([]domain.Skill, error) {
	skills, err := s.scanSkills(func(sk *domain.Skill) bool { return !sk.NextReviewDate.After(now) })
	if err != nil {
		return nil, err
	}
	sort.Slice(skills, func(i, j int) bool {
		a, b := skills[i], skills[j]
		if a.UserID != b.UserID {
			return a.UserID < b.UserID
		}
		if !a.NextReviewDate.Equal(b.NextReviewDate) {
			return a.NextReviewDate.Before(b.NextReviewDate)
		}
		return a.ID < b.ID
	})
	return skills, nil
}

func (s *Store) scanSkills(keep func(*domain.Skill) bool) ([]domain.Skill, error) {
	var skills []domain.Skill
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("skill/")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var sk domain.Skill
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &sk)
			}); err != nil {
				return err
			}
			if keep(&sk) {
				skills = append(skills, sk)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan skills: %w", err)
	}
	return skills, nil
}

// DeleteSkill removes a skill together with its cards and practice logs.
func (s *Store) DeleteSkill(ctx context.Context, skillID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, prefix := range [][]byte{cardPrefix(skillID), logPrefix(skillID)} {
			keys, err := collectKeys(txn, prefix)
			if err != nil {
				return err
			}
			for _, k := range keys {
				if err := txn.Delete(k); err != nil {
					return err
				}
			}
		}
		return txn.Delete(skillKey(skillID))
	})
	if err != nil {
		return fmt.Errorf("failed to delete skill %s: %w", skillID, err)
	}
	return nil
}

func collectKeys(txn *badger.Txn, prefix []byte) ([][]byte, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Rewind(); it.Valid(); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys, nil
}

// AddLog appends a practice log. The skill must exist.
func (s *Store) AddLog(ctx context.Context, l *domain.PracticeLog) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(skillKey(l.SkillID)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s", ErrSkillNotFound, l.SkillID)
			}
			return err
		}
		return set(txn, logKey(l), l)
	})
	if err != nil {
		return fmt.Errorf("failed to insert log %s: %w", l.ID, err)
	}
	return nil
}

// ListLogs returns the most recent logs of a skill, newest first.
// A limit of zero or less returns every log.
func (s *Store) ListLogs(ctx context.Context, skillID string, limit int) ([]domain.PracticeLog, error) {
	var logs []domain.PracticeLog
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := logPrefix(skillID)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration must start past every key sharing the prefix.
		seek := append(append([]byte{}, prefix...), 0xFF)
		for it.Seek(seek); it.Valid(); it.Next() {
			if limit > 0 && len(logs) >= limit {
				break
			}
			var l domain.PracticeLog
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &l)
			}); err != nil {
				return err
			}
			logs = append(logs, l)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get logs for skill %s: %w", skillID, err)
	}
	return logs, nil
}
