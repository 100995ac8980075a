package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Guizzs26/community_voting_system/internal/model"
)

func (s *SQLiteStore) CreateUser(ctx context.Context, name, username, passwordHash string) (model.User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.User{}, fmt.Errorf("error starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if taken, err := exists(ctx, tx, `SELECT 1 FROM users WHERE username = ?`, username); err != nil {
		return model.User{}, err
	} else if taken {
		return model.User{}, ErrUsernameTaken
	}
	if taken, err := exists(ctx, tx, `SELECT 1 FROM users WHERE name = ?`, name); err != nil {
		return model.User{}, err
	} else if taken {
		return model.User{}, ErrNameTaken
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO users (name, username, password) VALUES (?, ?, ?)`, name, username, passwordHash)
	if err != nil {
		return model.User{}, fmt.Errorf("error inserting user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.User{}, fmt.Errorf("error reading user id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return model.User{}, fmt.Errorf("error committing user: %w", err)
	}
	return model.User{ID: id, Name: name, Username: username}, nil
}

func (s *SQLiteStore) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, username FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("error listing users: %w", err)
	}
	defer rows.Close()

	users := make([]model.User, 0)
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Username); err != nil {
			return nil, fmt.Errorf("error scanning user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, username string) (model.User, error) {
	return getUser(ctx, s.db, username)
}

func (s *SQLiteStore) UpdateUser(ctx context.Context, username string, name, passwordHash *string) (model.User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.User{}, fmt.Errorf("error starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	u, err := getUser(ctx, tx, username)
	if err != nil {
		return model.User{}, err
	}

	if name != nil && *name != u.Name {
		taken, err := exists(ctx, tx, `SELECT 1 FROM users WHERE name = ?`, *name)
		if err != nil {
			return model.User{}, err
		}
		if taken {
			return model.User{}, ErrNameTaken
		}
		if _, err := tx.ExecContext(ctx, `UPDATE users SET name = ? WHERE id = ?`, *name, u.ID); err != nil {
			return model.User{}, fmt.Errorf("error updating user %s: %w", username, err)
		}
		u.Name = *name
	}
	if passwordHash != nil {
		if _, err := tx.ExecContext(ctx, `UPDATE users SET password = ? WHERE id = ?`, *passwordHash, u.ID); err != nil {
			return model.User{}, fmt.Errorf("error updating password of %s: %w", username, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return model.User{}, fmt.Errorf("error committing user update: %w", err)
	}
	return u, nil
}

func (s *SQLiteStore) DeleteUser(ctx context.Context, username string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE username = ?`, username)
	if err != nil {
		return fmt.Errorf("error deleting user %s: %w", username, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error deleting user %s: %w", username, err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func getUser(ctx context.Context, q queryer, username string) (model.User, error) {
	var u model.User
	err := q.QueryRowContext(ctx, `SELECT id, name, username FROM users WHERE username = ?`, username).
		Scan(&u.ID, &u.Name, &u.Username)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("error reading user %s: %w", username, err)
	}
	return u, nil
}

func exists(ctx context.Context, q queryer, query string, args ...any) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("error checking existence: %w", err)
	}
	return true, nil
}
