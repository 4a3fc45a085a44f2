package week

import (
	"time"

	"riverrace_stats/internal/app"
)

// MaxWarDay is the highest day number attributed within one week.
const MaxWarDay = 10

// DaySource names the signal that produced a day number.
type DaySource string

const (
	DaySourceOverride    DaySource = "override"
	DaySourceDB          DaySource = "db"
	DaySourceFinishTime  DaySource = "finishTime"
	DaySourceCreatedDate DaySource = "createdDate"
	DaySourcePeriodIndex DaySource = "periodIndex"
	DaySourceNone        DaySource = "none"
)

// Anchor is the end of the previous week taken from the race log.
type Anchor struct {
	At     time.Time
	Source DaySource
}

// DayInput collects every signal the day resolver may use.
type DayInput struct {
	Today time.Time
	// OverrideStart, when set, is the known first war day of the week.
	OverrideStart        *time.Time
	FirstSnapshotDate    *time.Time
	LogAnchor            *Anchor
	PeriodIndex          *int
	TrainingDaysFallback int
}

// DayResolution is the day number within the week, or Known=false.
type DayResolution struct {
	Day    int
	Known  bool
	Source DaySource
}

func unknownDay() DayResolution {
	return DayResolution{Source: DaySourceNone}
}

// ResolveDay determines the war day (1..MaxWarDay) from the first signal available:
// manual override, earliest stored daily snapshot, race-log anchor, raw period index.
// Pure function: no I/O, deterministic for a fixed input.
func ResolveDay(in DayInput) DayResolution {
	today := DateOf(in.Today)

	if in.OverrideStart != nil {
		day := DaysBetween(DateOf(*in.OverrideStart), today) + 1
		if day < 1 || day > MaxWarDay {
			return unknownDay()
		}
		return DayResolution{Day: day, Known: true, Source: DaySourceOverride}
	}

	if in.FirstSnapshotDate != nil {
		day := DaysBetween(DateOf(*in.FirstSnapshotDate), today) + 1
		if day < 1 {
			day = 1
		}
		if day > MaxWarDay {
			return unknownDay()
		}
		return DayResolution{Day: day, Known: true, Source: DaySourceDB}
	}

	if in.LogAnchor != nil {
		warStart := DateOf(in.LogAnchor.At).AddDate(0, 0, in.TrainingDaysFallback)
		day := DaysBetween(warStart, today) + 1
		if day < 1 || day > MaxWarDay {
			return unknownDay()
		}
		return DayResolution{Day: day, Known: true, Source: in.LogAnchor.Source}
	}

	if in.PeriodIndex != nil {
		day := *in.PeriodIndex + 1
		if day >= 1 && day <= MaxWarDay {
			return DayResolution{Day: day, Known: true, Source: DaySourcePeriodIndex}
		}
	}

	return unknownDay()
}

// FindLogAnchor returns the end time of the most recent log entry that contains
// the clan's standing: the clan's finishTime, else the entry's createdDate.
func FindLogAnchor(entries []app.RiverRaceLogEntry, clanTag string) *Anchor {
	for _, entry := range entries {
		standing, ok := entry.StandingFor(clanTag)
		if !ok {
			continue
		}
		if at, ok := ParseTimestamp(standing.Clan.FinishTime); ok {
			return &Anchor{At: at, Source: DaySourceFinishTime}
		}
		if at, ok := ParseTimestamp(entry.CreatedDate); ok {
			return &Anchor{At: at, Source: DaySourceCreatedDate}
		}
	}
	return nil
}

var timestampLayouts = []string{
	"20060102T150405.000Z",
	"20060102T150405Z",
}

// ParseTimestamp parses the API's compact timestamps, e.g. "20260206T100000.000Z".
func ParseTimestamp(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// DateOf truncates t to midnight UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole calendar days from a to b (both dates at midnight UTC).
func DaysBetween(a, b time.Time) int {
	return int(DateOf(b).Sub(DateOf(a)).Hours() / 24)
}
