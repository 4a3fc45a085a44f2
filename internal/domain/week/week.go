package week

import (
	"fmt"
	"strings"
	"time"
)

// Key identifies one river race week.
type Key struct {
	SeasonID     int `json:"season_id"`
	SectionIndex int `json:"section_index"`
}

// Valid reports whether the key can be persisted: season > 0, section >= 0.
func (k Key) Valid() bool {
	return k.SeasonID > 0 && k.SectionIndex >= 0
}

// Previous returns the week before k within the same season, if any.
func (k Key) Previous() (Key, bool) {
	if k.SectionIndex <= 0 {
		return Key{}, false
	}
	return Key{SeasonID: k.SeasonID, SectionIndex: k.SectionIndex - 1}, true
}

// String formats the key as "S<season> W<week>", with weeks shown 1-based.
func (k Key) String() string {
	return fmt.Sprintf("S%d W%d", k.SeasonID, k.SectionIndex+1)
}

// Period is the phase of a river race week.
type Period string

const (
	PeriodTraining  Period = "training"
	PeriodWarDay    Period = "warday"
	PeriodColosseum Period = "colosseum"
	PeriodCompleted Period = "completed"
	PeriodUnknown   Period = "unknown"
)

// NormalizePeriod lower-cases the upstream periodType ("warDay" -> "warday").
func NormalizePeriod(raw string) Period {
	switch p := Period(strings.ToLower(strings.TrimSpace(raw))); p {
	case PeriodTraining, PeriodWarDay, PeriodColosseum, PeriodCompleted:
		return p
	case "":
		return PeriodUnknown
	default:
		return p
	}
}

// IsBattle reports whether decks can be used during the period.
func (p Period) IsBattle() bool {
	return p == PeriodWarDay || p == PeriodColosseum
}

// ActiveWeek is the persisted pointer to the week currently believed active.
type ActiveWeek struct {
	SeasonID     int       `json:"season_id"`
	SectionIndex int       `json:"section_index"`
	SetAt        time.Time `json:"set_at"`
}

// Key returns the week the pointer refers to.
func (a ActiveWeek) Key() Key {
	return Key{SeasonID: a.SeasonID, SectionIndex: a.SectionIndex}
}

// Valid reports whether the stored pointer is usable; malformed pointers are
// treated as absent.
func (a *ActiveWeek) Valid() bool {
	return a != nil && a.Key().Valid()
}

// ObservedSeason returns the upstream season id when it is usable.
func ObservedSeason(v *int) *int {
	if v == nil || *v <= 0 {
		return nil
	}
	return v
}

// ObservedSection returns the upstream section index when it is usable.
func ObservedSection(v *int) *int {
	if v == nil || *v < 0 {
		return nil
	}
	return v
}
