package model

import "time"

const (
	MaxProjectTitleLen = 100

	ProjectProposed  = "proposed"
	ProjectActive    = "active"
	ProjectCompleted = "completed"
)

// ValidProjectStatus reports whether s is one of the project lifecycle states.
func ValidProjectStatus(s string) bool {
	switch s {
	case ProjectProposed, ProjectActive, ProjectCompleted:
		return true
	}
	return false
}

type Project struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	Budget      float64   `json:"budget"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// ProjectInput is the body of a project creation request. Budget is a
// pointer so a missing budget is told apart from a zero one.
type ProjectInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Budget      *float64 `json:"budget"`
	CreatedBy   string   `json:"created_by"`
}

type ProjectPatch struct {
	Description *string  `json:"description,omitempty"`
	Status      *string  `json:"status,omitempty"`
	Budget      *float64 `json:"budget,omitempty"`
}

func (p ProjectPatch) Empty() bool {
	return p.Description == nil && p.Status == nil && p.Budget == nil
}
