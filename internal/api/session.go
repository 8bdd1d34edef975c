package api

import (
	"fmt"
	"strconv"

	gojwt "github.com/golang-jwt/jwt/v5"
)

type Session struct {
	UserID int64
	Role   string
	Name   string
}

func (s Session) IsAdmin() bool {
	return s.Role == "admin"
}

// ParseSessionUnverified reads the identity claims of a bearer token. The
// signature is checked by the server on every request, not here.
func ParseSessionUnverified(token string) (Session, error) {
	parser := gojwt.NewParser()
	parsed, _, err := parser.ParseUnverified(token, gojwt.MapClaims{})
	if err != nil {
		return Session{}, err
	}
	claims := parsed.Claims.(gojwt.MapClaims)

	s := Session{}
	for _, key := range []string{"user_id", "sub"} {
		if v, ok := claims[key]; ok {
			id, err := claimInt(v)
			if err != nil {
				return Session{}, fmt.Errorf("claim %s: %w", key, err)
			}
			s.UserID = id
			break
		}
	}
	if role, ok := claims["role"].(string); ok {
		s.Role = role
	}
	if name, ok := claims["name"].(string); ok {
		s.Name = name
	}
	if s.UserID == 0 {
		return Session{}, fmt.Errorf("token carries no user id")
	}
	return s, nil
}

func claimInt(v any) (int64, error) {
	switch n := v.(type) {
	case float64:
		return int64(n), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}
