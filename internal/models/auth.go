package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents the roles recognised by the attendance API.
type UserRole string

const (
	RoleAdmin      UserRole = "ADMIN"
	RoleLiaison    UserRole = "LIAISON"
	RoleSupervisor UserRole = "SUPERVISOR"
	RoleOfficer    UserRole = "OFFICER"
	RoleWitness    UserRole = "WITNESS"
)

// AttendeeRole maps an authenticated role onto a roster role.
func (r UserRole) AttendeeRole() (AttendeeRole, bool) {
	switch r {
	case RoleOfficer:
		return AttendeeRoleOfficer, true
	case RoleWitness:
		return AttendeeRoleWitness, true
	default:
		return "", false
	}
}

// JWTClaims represents the JWT payload for access tokens issued by the auth layer.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}
