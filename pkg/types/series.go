package types

import (
	"fmt"
	"time"
)

// SeriesStatus is the publication state of a series.
type SeriesStatus string

// Series statuses.
const (
	SeriesOngoing   SeriesStatus = "ongoing"
	SeriesCompleted SeriesStatus = "completed"
	SeriesHiatus    SeriesStatus = "hiatus"
)

// ParseSeriesStatus converts a stored status string into a SeriesStatus.
func ParseSeriesStatus(s string) (SeriesStatus, error) {
	switch SeriesStatus(s) {
	case SeriesOngoing, SeriesCompleted, SeriesHiatus:
		return SeriesStatus(s), nil
	}
	return "", fmt.Errorf("%w: unknown series status %q", ErrInvalidData, s)
}

// Series groups chapters.
type Series struct {
	ID           string
	Title        string
	Slug         string
	Status       SeriesStatus
	Adult        bool
	LanguageCode string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
