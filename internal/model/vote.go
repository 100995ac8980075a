package model

import (
	"bytes"
	"encoding/json"
	"time"
)

// MaxVoteTypeLen bounds the vote_type column.
const MaxVoteTypeLen = 10

type Vote struct {
	ID           int64     `json:"id"`
	UserUsername string    `json:"user_username"`
	ProjectTitle string    `json:"project_title"`
	VoteType     string    `json:"vote_type"`
	Comment      *string   `json:"comment"`
	Date         time.Time `json:"date"`
}

// VoteInput is the body of a vote creation request.
type VoteInput struct {
	UserUsername string  `json:"user_username"`
	ProjectTitle string  `json:"project_title"`
	VoteType     string  `json:"vote_type"`
	Comment      *string `json:"comment,omitempty"`
}

// VotePatch carries the mutable fields of a vote. A field is applied only
// when it was present in the request body, so an explicit null comment
// clears it while an absent one leaves it untouched.
type VotePatch struct {
	VoteType   *string
	Comment    *string
	SetComment bool
}

func (p *VotePatch) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if v, ok := raw["vote_type"]; ok && !isNull(v) {
		var voteType string
		if err := json.Unmarshal(v, &voteType); err != nil {
			return err
		}
		p.VoteType = &voteType
	}

	if v, ok := raw["comment"]; ok {
		p.SetComment = true
		if !isNull(v) {
			var comment string
			if err := json.Unmarshal(v, &comment); err != nil {
				return err
			}
			p.Comment = &comment
		}
	}

	return nil
}

func (p VotePatch) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, 2)
	if p.VoteType != nil {
		out["vote_type"] = *p.VoteType
	}
	if p.SetComment {
		out["comment"] = p.Comment
	}
	return json.Marshal(out)
}

// Empty reports whether the patch would change nothing.
func (p VotePatch) Empty() bool {
	return p.VoteType == nil && !p.SetComment
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
