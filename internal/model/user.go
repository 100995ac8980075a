package model

const (
	MaxUserNameLen     = 50
	MaxUserUsernameLen = 50
)

// User is a community member. The password hash never leaves the store.
type User struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

// UserInput is the body of a user creation request.
type UserInput struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// UserPatch carries the mutable fields of a user; nil means unchanged.
type UserPatch struct {
	Name     *string `json:"name,omitempty"`
	Password *string `json:"password,omitempty"`
}

func (p UserPatch) Empty() bool {
	return p.Name == nil && p.Password == nil
}
