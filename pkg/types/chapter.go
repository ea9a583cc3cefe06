package types

import (
	"strings"
	"time"
)

// Chapter belongs to exactly one Series and is identified by
// (SeriesID, Number). Number is a string so values like "10.5" survive.
type Chapter struct {
	ID         string
	SeriesID   string
	Number     string
	Title      string
	Pages      []string // Page image locations, in reading order.
	TotalPages int      // Always len(Pages) at write time.
	Locked     bool
	UnlockCost int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ChapterInput is the caller-supplied data for CreateChapter.
type ChapterInput struct {
	SeriesID   string
	Number     string
	Title      string
	Pages      []string
	TotalPages int // Discarded; the engine derives it from Pages.
	Locked     bool
	UnlockCost int64
}

// Normalize trims identifying fields and checks the input is usable.
// Returns ErrInvalidData when a required field is missing.
func (in ChapterInput) Normalize() (ChapterInput, error) {
	in.SeriesID = strings.TrimSpace(in.SeriesID)
	in.Number = strings.TrimSpace(in.Number)
	if in.SeriesID == "" || in.Number == "" {
		return in, ErrInvalidData
	}
	if in.UnlockCost < 0 {
		return in, ErrInvalidAmount
	}
	in.TotalPages = len(in.Pages)
	return in, nil
}

// ChapterKey is the natural identity of a chapter.
type ChapterKey struct {
	SeriesID string
	Number   string
}
