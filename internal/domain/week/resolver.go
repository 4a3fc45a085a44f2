package week

import "time"

// Source names the transition the resolver took.
type Source string

const (
	SourceCurrentRiverRace  Source = "currentriverrace"
	SourceStoredActiveWeek  Source = "stored_active_week"
	SourceHeuristicRollover Source = "heuristic_rollover"
	SourceMissing           Source = "missing"
)

// rolloverMinStoredSection is the lowest stored section for which a live
// section 0 is read as a season rollover.
const rolloverMinStoredSection = 3

// Observation is what the live API reported; nil fields were absent or unusable.
type Observation struct {
	SeasonID     *int
	SectionIndex *int
}

// NewObservation builds an Observation from raw upstream values, dropping
// non-positive seasons and negative sections.
func NewObservation(seasonID, sectionIndex *int) Observation {
	return Observation{
		SeasonID:     ObservedSeason(seasonID),
		SectionIndex: ObservedSection(sectionIndex),
	}
}

// Resolution is the outcome of one resolver step.
type Resolution struct {
	Week     Key
	Resolved bool
	Source   Source
	// Next is the pointer to persist; nil when nothing is stored.
	Next *ActiveWeek
	// Changed is true when Next differs from the previous pointer.
	Changed bool
}

// Resolve merges the live observation with the stored pointer.
// Pure function: the same (prev, obs, now) always gives the same Resolution.
//
// Order of precedence:
//  1. live section 0, stored section >= 3, live season absent or not newer:
//     rollover to (stored season + 1, 0)
//  2. live season present: trust live season and section
//  3. stored pointer present: advance its section if the live one is not lower
//  4. otherwise missing
func Resolve(prev *ActiveWeek, obs Observation, now time.Time) Resolution {
	if !prev.Valid() {
		prev = nil
	}

	if obs.SectionIndex == nil {
		if prev != nil {
			return keep(prev, SourceStoredActiveWeek)
		}
		return Resolution{Source: SourceMissing}
	}

	section := *obs.SectionIndex

	if prev != nil && section == 0 && prev.SectionIndex >= rolloverMinStoredSection &&
		(obs.SeasonID == nil || *obs.SeasonID <= prev.SeasonID) {
		return advance(prev, Key{SeasonID: prev.SeasonID + 1, SectionIndex: 0}, SourceHeuristicRollover, now)
	}

	if obs.SeasonID != nil {
		return advance(prev, Key{SeasonID: *obs.SeasonID, SectionIndex: section}, SourceCurrentRiverRace, now)
	}

	if prev != nil {
		if section >= prev.SectionIndex {
			return advance(prev, Key{SeasonID: prev.SeasonID, SectionIndex: section}, SourceStoredActiveWeek, now)
		}
		return keep(prev, SourceStoredActiveWeek)
	}

	return Resolution{Source: SourceMissing}
}

func keep(prev *ActiveWeek, source Source) Resolution {
	next := *prev
	return Resolution{Week: prev.Key(), Resolved: true, Source: source, Next: &next}
}

func advance(prev *ActiveWeek, key Key, source Source, now time.Time) Resolution {
	if prev != nil && prev.Key() == key {
		return keep(prev, source)
	}
	return Resolution{
		Week:     key,
		Resolved: true,
		Source:   source,
		Next:     &ActiveWeek{SeasonID: key.SeasonID, SectionIndex: key.SectionIndex, SetAt: now.UTC()},
		Changed:  true,
	}
}
