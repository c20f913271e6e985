package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	RoleEvaluator  = "evaluator"
	RoleResearcher = "researcher"
	RoleAdmin      = "admin"
)

// User is an evaluator, researcher or admin. Accounts are managed outside this service;
// the table exists so uploads and evaluations can reference their actor.
type User struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Username  string    `db:"username" json:"username"`
	Role      string    `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Claims defines the structure of the JWT claims. Subject carries the user id.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}
