package week

// ColosseumMap records, per season, which section index was the colosseum week.
// The upstream API never announces it, so it is learned while the week runs.
type ColosseumMap map[int]int

// Learn records section as the colosseum week of season and reports whether
// the map changed.
func (m ColosseumMap) Learn(season, section int) bool {
	if season <= 0 || section < 0 {
		return false
	}
	if current, ok := m[season]; ok && current == section {
		return false
	}
	m[season] = section
	return true
}

// IsColosseum reports whether the week is the learned colosseum week of its season.
func (m ColosseumMap) IsColosseum(k Key) (bool, bool) {
	section, ok := m[k.SeasonID]
	if !ok {
		return false, false
	}
	return section == k.SectionIndex, true
}

// ResolveColosseum picks the colosseum flag for a week: the explicit log flag,
// then the learned map, then the live period type.
func ResolveColosseum(explicit *bool, k Key, m ColosseumMap, period Period) bool {
	if explicit != nil {
		return *explicit
	}
	if is, known := m.IsColosseum(k); known {
		return is
	}
	return period == PeriodColosseum
}
