package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Guizzs26/community_voting_system/internal/model"
)

const projectColumns = `id, title, description, status, budget, created_by, created_at`

func (s *SQLiteStore) CreateProject(ctx context.Context, in model.ProjectInput) (model.Project, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Project{}, fmt.Errorf("error starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := getUser(ctx, tx, in.CreatedBy); err != nil {
		return model.Project{}, err
	}
	if taken, err := exists(ctx, tx, `SELECT 1 FROM projects WHERE title = ?`, in.Title); err != nil {
		return model.Project{}, err
	} else if taken {
		return model.Project{}, ErrProjectExists
	}

	p := model.Project{
		Title:       in.Title,
		Description: in.Description,
		Status:      model.ProjectProposed,
		CreatedBy:   in.CreatedBy,
		CreatedAt:   time.Now().UTC(),
	}
	if in.Budget != nil {
		p.Budget = *in.Budget
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO projects (title, description, status, budget, created_by, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		p.Title, p.Description, p.Status, p.Budget, p.CreatedBy, formatTime(p.CreatedAt),
	)
	if err != nil {
		return model.Project{}, fmt.Errorf("error inserting project: %w", err)
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return model.Project{}, fmt.Errorf("error reading project id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return model.Project{}, fmt.Errorf("error committing project: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) ListProjects(ctx context.Context) ([]model.Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("error listing projects: %w", err)
	}
	defer rows.Close()

	projects := make([]model.Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}
	return projects, nil
}

func (s *SQLiteStore) GetProject(ctx context.Context, title string) (model.Project, error) {
	return getProject(ctx, s.db, title)
}

func (s *SQLiteStore) UpdateProject(ctx context.Context, title string, patch model.ProjectPatch) (model.Project, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Project{}, fmt.Errorf("error starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	p, err := getProject(ctx, tx, title)
	if err != nil {
		return model.Project{}, err
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Status != nil {
		p.Status = *patch.Status
	}
	if patch.Budget != nil {
		p.Budget = *patch.Budget
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE projects SET description = ?, status = ?, budget = ? WHERE id = ?`,
		p.Description, p.Status, p.Budget, p.ID,
	); err != nil {
		return model.Project{}, fmt.Errorf("error updating project %q: %w", title, err)
	}

	if err := tx.Commit(); err != nil {
		return model.Project{}, fmt.Errorf("error committing project update: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) DeleteProject(ctx context.Context, title string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE title = ?`, title)
	if err != nil {
		return fmt.Errorf("error deleting project %q: %w", title, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error deleting project %q: %w", title, err)
	}
	if n == 0 {
		return ErrProjectNotFound
	}
	return nil
}

func getProject(ctx context.Context, q queryer, title string) (model.Project, error) {
	row := q.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE title = ?`, title)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Project{}, ErrProjectNotFound
	}
	return p, err
}

func scanProject(s scanner) (model.Project, error) {
	var (
		p         model.Project
		createdAt string
	)
	if err := s.Scan(&p.ID, &p.Title, &p.Description, &p.Status, &p.Budget, &p.CreatedBy, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Project{}, err
		}
		return model.Project{}, fmt.Errorf("error scanning project: %w", err)
	}

	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return model.Project{}, fmt.Errorf("error parsing created_at of project %d: %w", p.ID, err)
	}
	p.CreatedAt = t
	return p, nil
}
