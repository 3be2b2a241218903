// Package model defines the data structures shared by the repository,
// service, and handler layers.
package model

import "time"

// Snippet is the mutable "current" projection of a stored code artifact.
// CurrentContent always mirrors the content of the version numbered
// ActiveVersion; a snippet never exists without at least one version.
type Snippet struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	CurrentContent string    `json:"currentContent"`
	Language       string    `json:"language"`
	OwnerID        string    `json:"ownerId"`
	ActiveVersion  int       `json:"activeVersionNumber"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Version is an immutable numbered snapshot of a snippet's content.
// Version numbers are assigned per snippet as previous max + 1 and are
// never reused, even after a version is deleted.
type Version struct {
	ID            string    `json:"id"`
	SnippetID     string    `json:"snippetId"`
	VersionNumber int       `json:"versionNumber"`
	Content       string    `json:"content"`
	CommitMessage string    `json:"commitMessage"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Metrics holds the static counters derived from one version's content.
// Exactly one Metrics row exists per version; it is written in the same
// transaction as the version and deleted with it.
type Metrics struct {
	ID                   string `json:"id"`
	VersionID            string `json:"versionId"`
	LOC                  int    `json:"loc"`
	KeywordCount         int    `json:"keywordCount"`
	CyclomaticComplexity int    `json:"cyclomaticComplexity"`
}
