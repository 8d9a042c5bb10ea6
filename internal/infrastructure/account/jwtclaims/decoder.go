package jwtclaims

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/riskibarqy/judging-portal/internal/domain/session"
)

// Claims is the payload the judging backend puts in its access tokens.
type Claims struct {
	UserName string `json:"user_name"`
	IsJudge  bool   `json:"is_judge"`
	IsPlayer bool   `json:"is_player"`
	jwt.RegisteredClaims
}

// Decoder reads access token claims without verifying the signature or the
// expiry; the backend remains the authority and answers 401 when it disagrees.
type Decoder struct {
	parser *jwt.Parser
}

func NewDecoder() *Decoder {
	return &Decoder{parser: jwt.NewParser()}
}

func (d *Decoder) Decode(access string) (session.Identity, error) {
	claims, err := d.Claims(access)
	if err != nil {
		return session.Identity{}, err
	}

	return session.Identity{
		Username: claims.UserName,
		IsJudge:  claims.IsJudge,
		IsPlayer: claims.IsPlayer,
	}, nil
}

func (d *Decoder) Claims(access string) (*Claims, error) {
	access = strings.TrimSpace(access)
	if access == "" {
		return nil, fmt.Errorf("decode access token: %w", jwt.ErrTokenMalformed)
	}

	claims := &Claims{}
	if _, _, err := d.parser.ParseUnverified(access, claims); err != nil {
		return nil, fmt.Errorf("decode access token: %w", err)
	}

	return claims, nil
}
