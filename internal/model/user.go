package model

import "time"

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Session is a bearer token issued to a user. Token is only populated on
// creation; the store keeps a digest.
type Session struct {
	ID        int64     `json:"id"`
	Token     string    `json:"token,omitempty"`
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}
