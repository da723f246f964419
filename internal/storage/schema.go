package storage

const schema = `
-- 'skills' holds each user's practiced skills. next_review_date mirrors the
-- skill's card so listings do not need a join.
CREATE TABLE IF NOT EXISTS skills (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    name TEXT NOT NULL,
    category TEXT NOT NULL DEFAULT '',
    next_review_date TEXT NOT NULL,
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_skills_user ON skills(user_id);
CREATE INDEX IF NOT EXISTS idx_skills_next_review ON skills(next_review_date);

-- 'cards' stores the memory model state for one (skill, user) pair.
CREATE TABLE IF NOT EXISTS cards (
    card_id TEXT PRIMARY KEY,
    skill_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    stability REAL NOT NULL,
    difficulty REAL NOT NULL,
    state INTEGER NOT NULL DEFAULT 0, -- 0: New, 1: Learning, 2: Review, 3: Relearning
    reps INTEGER NOT NULL DEFAULT 0,
    lapses INTEGER NOT NULL DEFAULT 0,
    scheduled_days INTEGER NOT NULL DEFAULT 0,
    last_reviewed TEXT,
    next_review TEXT NOT NULL,

    UNIQUE(skill_id, user_id),
    FOREIGN KEY(skill_id) REFERENCES skills(id)
);

-- 'practice_logs' keeps every submitted log with the analysis it produced.
CREATE TABLE IF NOT EXISTS practice_logs (
    id TEXT PRIMARY KEY,
    skill_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    content TEXT NOT NULL,
    feeling TEXT NOT NULL,
    analysis_json TEXT,
    created_at TEXT NOT NULL,

    FOREIGN KEY(skill_id) REFERENCES skills(id)
);

CREATE INDEX IF NOT EXISTS idx_practice_logs_skill ON practice_logs(skill_id, created_at);
`
