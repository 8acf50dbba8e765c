package dto

import "time"

// User is the public profile payload.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email,omitempty"`
	Name      string    `json:"name"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Roles     []string  `json:"roles,omitempty"`
	Blocked   bool      `json:"blocked,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AuthResponse carries the bearer token issued on register/login.
type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// AdminStats is the admin dashboard payload.
type AdminStats struct {
	Users    int64 `json:"users"`
	Listings int64 `json:"listings"`
}
