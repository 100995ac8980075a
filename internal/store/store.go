package store

import (
	"context"
	"errors"

	"github.com/Guizzs26/community_voting_system/internal/model"
)

var (
	ErrVoteNotFound    = errors.New("vote not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrProjectNotFound = errors.New("project not found")
	ErrUsernameTaken   = errors.New("username already exists")
	ErrNameTaken       = errors.New("name already exists")
	ErrProjectExists   = errors.New("project title already exists")
)

type VoteStore interface {
	CreateVote(ctx context.Context, in model.VoteInput) (model.Vote, error)
	ListVotes(ctx context.Context) ([]model.Vote, error)
	GetVote(ctx context.Context, id int64) (model.Vote, error)
	// UpdateVote applies the patch and returns the vote before and after it.
	UpdateVote(ctx context.Context, id int64, patch model.VotePatch) (before, after model.Vote, err error)
	DeleteVote(ctx context.Context, id int64) (model.Vote, error)
	Close() error
}

type UserStore interface {
	// CreateUser stores a user with an already hashed password.
	CreateUser(ctx context.Context, name, username, passwordHash string) (model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	GetUser(ctx context.Context, username string) (model.User, error)
	// UpdateUser sets the name and/or password hash; nil leaves a field as is.
	UpdateUser(ctx context.Context, username string, name, passwordHash *string) (model.User, error)
	DeleteUser(ctx context.Context, username string) error
}

type ProjectStore interface {
	// CreateProject fails with ErrUserNotFound when CreatedBy is unknown.
	CreateProject(ctx context.Context, in model.ProjectInput) (model.Project, error)
	ListProjects(ctx context.Context) ([]model.Project, error)
	GetProject(ctx context.Context, title string) (model.Project, error)
	UpdateProject(ctx context.Context, title string, patch model.ProjectPatch) (model.Project, error)
	DeleteProject(ctx context.Context, title string) error
}

// Store is the relational side of the system, implemented by SQLiteStore.
type Store interface {
	VoteStore
	UserStore
	ProjectStore
}

type TallyStore interface {
	// ApplyEvent folds the event into its project's tally. It returns false
	// when the event was already applied.
	ApplyEvent(ctx context.Context, ev model.VoteEvent) (bool, error)
	GetResults(ctx context.Context, projectTitle string) (map[string]int, error)
	Close() error
}
