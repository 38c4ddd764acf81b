package model

import "time"

// LocalGitHubID marks the single account used by passphrase login. Real
// GitHub IDs are positive.
const LocalGitHubID int64 = 0

// User is an account that can save snippets. Identity comes from GitHub
// OAuth, or from the shared passphrase for the local account.
type User struct {
	ID        string    `json:"id"`
	GitHubID  int64     `json:"githubId"` // UNIQUE; LocalGitHubID for the passphrase account
	Login     string    `json:"login"`
	Email     string    `json:"email"` // may be empty when hidden on GitHub
	AvatarURL string    `json:"avatarUrl"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
