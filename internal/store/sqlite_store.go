package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Guizzs26/community_voting_system/internal/model"
	_ "modernc.org/sqlite" // pure Go driver registered as "sqlite"
)

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the database at path (":memory:" for a throwaway
// one) and applies pending migrations.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if path != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening sqlite database: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serialises writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error connecting to sqlite: %w", err)
	}

	if err := Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) CreateVote(ctx context.Context, in model.VoteInput) (model.Vote, error) {
	v := model.Vote{
		UserUsername: in.UserUsername,
		ProjectTitle: in.ProjectTitle,
		VoteType:     in.VoteType,
		Comment:      in.Comment,
		Date:         time.Now().UTC(),
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO votes (user_username, project_title, vote_type, comment, date) VALUES (?, ?, ?, ?, ?)`,
		v.UserUsername, v.ProjectTitle, v.VoteType, nullString(v.Comment), formatTime(v.Date),
	)
	if err != nil {
		return model.Vote{}, fmt.Errorf("error inserting vote: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return model.Vote{}, fmt.Errorf("error reading vote id: %w", err)
	}
	v.ID = id

	return v, nil
}

func (s *SQLiteStore) ListVotes(ctx context.Context) ([]model.Vote, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_username, project_title, vote_type, comment, date FROM votes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("error listing votes: %w", err)
	}
	defer rows.Close()

	votes := make([]model.Vote, 0)
	for rows.Next() {
		v, err := scanVote(rows)
		if err != nil {
			return nil, err
		}
		votes = append(votes, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating votes: %w", err)
	}

	return votes, nil
}

func (s *SQLiteStore) GetVote(ctx context.Context, id int64) (model.Vote, error) {
	return getVote(ctx, s.db, id)
}

func (s *SQLiteStore) UpdateVote(ctx context.Context, id int64, patch model.VotePatch) (model.Vote, model.Vote, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Vote{}, model.Vote{}, fmt.Errorf("error starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	before, err := getVote(ctx, tx, id)
	if err != nil {
		return model.Vote{}, model.Vote{}, err
	}

	after := before
	if patch.VoteType != nil {
		after.VoteType = *patch.VoteType
	}
	if patch.SetComment {
		after.Comment = patch.Comment
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE votes SET vote_type = ?, comment = ? WHERE id = ?`,
		after.VoteType, nullString(after.Comment), id,
	); err != nil {
		return model.Vote{}, model.Vote{}, fmt.Errorf("error updating vote %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return model.Vote{}, model.Vote{}, fmt.Errorf("error committing vote update: %w", err)
	}

	return before, after, nil
}

func (s *SQLiteStore) DeleteVote(ctx context.Context, id int64) (model.Vote, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Vote{}, fmt.Errorf("error starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	v, err := getVote(ctx, tx, id)
	if err != nil {
		return model.Vote{}, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM votes WHERE id = ?`, id); err != nil {
		return model.Vote{}, fmt.Errorf("error deleting vote %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return model.Vote{}, fmt.Errorf("error committing vote deletion: %w", err)
	}

	return v, nil
}

func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("error closing sqlite database: %w", err)
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func getVote(ctx context.Context, q queryer, id int64) (model.Vote, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, user_username, project_title, vote_type, comment, date FROM votes WHERE id = ?`, id)

	v, err := scanVote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Vote{}, ErrVoteNotFound
	}
	return v, err
}

func scanVote(s scanner) (model.Vote, error) {
	var (
		v       model.Vote
		comment sql.NullString
		date    string
	)
	if err := s.Scan(&v.ID, &v.UserUsername, &v.ProjectTitle, &v.VoteType, &comment, &date); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Vote{}, err
		}
		return model.Vote{}, fmt.Errorf("error scanning vote: %w", err)
	}

	if comment.Valid {
		c := comment.String
		v.Comment = &c
	}

	t, err := time.Parse(time.RFC3339Nano, date)
	if err != nil {
		return model.Vote{}, fmt.Errorf("error parsing date of vote %d: %w", v.ID, err)
	}
	v.Date = t

	return v, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
