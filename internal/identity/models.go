package identity

import (
	"errors"
	"fmt"
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleSalesman Role = "salesman"
	RoleCustomer Role = "customer"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleAdmin, RoleSalesman, RoleCustomer:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("session missing or expired")
	ErrUsernameTaken      = errors.New("username already registered")
)

type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	Role         Role   `json:"role"`
	CreatedUnix  int64  `json:"created_unix"`
}

// Principal is the authenticated caller of one request.
type Principal struct {
	UserID     int64  `json:"user_id"`
	Username   string `json:"username"`
	Role       Role   `json:"role"`
	CustomerID *int64 `json:"customer_id,omitempty"`
}

type Session struct {
	Token       string    `json:"token"`
	ExpiresUnix int64     `json:"expires_unix"`
	Principal   Principal `json:"principal"`
}
