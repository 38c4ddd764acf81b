package model

import "time"

// Run records the outcome of one execution for the benchmark history.
// Program text and output are not stored, only what is needed to compare
// timings across languages.
type Run struct {
	ID              string        `json:"id"`
	Language        string        `json:"language"`
	Succeeded       bool          `json:"succeeded"`
	CompileDuration time.Duration `json:"compileDuration"`
	RunDuration     time.Duration `json:"runDuration"`
	CodeSize        int           `json:"codeSize"`
	UserID          string        `json:"userId,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
}

// LanguageStats aggregates the run history of one language.
type LanguageStats struct {
	Language   string        `json:"language"`
	Runs       int           `json:"runs"`
	Succeeded  int           `json:"succeeded"`
	AvgCompile time.Duration `json:"avgCompile"`
	AvgRun     time.Duration `json:"avgRun"`
	FastestRun time.Duration `json:"fastestRun"`
}
