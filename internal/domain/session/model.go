package session

import "fmt"

// TokenPair is the access/refresh credential pair issued by the judging
// backend. Both values are opaque to the portal.
type TokenPair struct {
	Access  string
	Refresh string
}

func (p TokenPair) Validate() error {
	if p.Access == "" {
		return fmt.Errorf("access token is required")
	}
	if p.Refresh == "" {
		return fmt.Errorf("refresh token is required")
	}

	return nil
}

// WithAccess returns a copy of the pair carrying a new access token while the
// refresh token is retained.
func (p TokenPair) WithAccess(access string) TokenPair {
	p.Access = access
	return p
}

type Role string

const (
	RoleJudge  Role = "judge"
	RolePlayer Role = "player"
)

func ParseRole(v string) (Role, error) {
	switch Role(v) {
	case RoleJudge, RolePlayer:
		return Role(v), nil
	default:
		return "", fmt.Errorf("unknown role %q", v)
	}
}

// Identity is derived from the access token claims and never stored.
type Identity struct {
	Username string `json:"username"`
	IsJudge  bool   `json:"is_judge"`
	IsPlayer bool   `json:"is_player"`
}

func (i Identity) HasRole(role Role) bool {
	switch role {
	case RoleJudge:
		return i.IsJudge
	case RolePlayer:
		return i.IsPlayer
	default:
		return false
	}
}

// State is the snapshot the views observe.
type State struct {
	LoggedIn bool      `json:"logged_in"`
	Identity *Identity `json:"identity"`
}

// Credentials are exchanged for a TokenPair at sign in.
type Credentials struct {
	Username string `json:"username" validate:"required,max=150"`
	Password string `json:"password" validate:"required,max=256"`
}
