// Package model defines the data structures shared across the application.
package model

import "time"

// User is a registered account. Accounts are created either through
// email/password registration or through GitHub OAuth.
//
// PasswordHash is the bcrypt hash for password accounts and empty for
// OAuth-only accounts — those can never log in with a password because
// bcrypt comparison against an empty hash always fails.
//
// GitHubID is GitHub's numeric user ID (0 for password accounts). The
// UNIQUE constraint on github_id maps one GitHub account to exactly one
// local account. GitHub IDs are integers large enough to need int64.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"displayName"`
	PasswordHash string    `json:"-"`
	GitHubID     int64     `json:"githubId,omitempty"`
	AvatarURL    string    `json:"avatarUrl,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
