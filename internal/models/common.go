package models

import "github.com/golang-jwt/jwt/v5"

// ActorRole identifies who is acting on a workflow record.
type ActorRole string

const (
	RoleAdmin ActorRole = "ADMIN"
	RoleTutor ActorRole = "TUTOR"
)

// JWTClaims is the bearer-token payload used for requester/reviewer identity.
type JWTClaims struct {
	UserID   string    `json:"user_id"`
	Role     ActorRole `json:"role"`
	FullName string    `json:"full_name"`
	jwt.RegisteredClaims
}

// Pagination describes paged listing metadata.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
