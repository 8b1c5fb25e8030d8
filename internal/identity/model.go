package identity

import (
	"errors"
	"time"
)

// Roles an attendant account can hold.
const (
	RoleAttendant = "attendant"
	RoleAdmin     = "admin"
)

var (
	ErrNotFound           = errors.New("attendant not found")
	ErrExists             = errors.New("attendant already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Attendant is a station operator or back-office administrator.
type Attendant struct {
	ID           string
	Name         string
	Email        string
	PasswordHash []byte
	StationID    string
	Role         string
	TokenVersion int
	CreatedAt    time.Time
	LastLogin    *time.Time
}

// Registration is the input for a new account.
type Registration struct {
	Name      string
	Email     string
	Password  string
	StationID string
	Role      string
}
