// Package model defines the records persisted by the repository layer.
package model

import "time"

// Snippet is a saved program in one of the runnable languages. Built-in
// examples are stored as snippets too, marked with Example.
type Snippet struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Language    string    `json:"language"`
	Code        string    `json:"code"`
	Description string    `json:"description"`
	Example     bool      `json:"example"`
	UserID      string    `json:"userId,omitempty"` // empty for anonymous and seeded snippets
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
