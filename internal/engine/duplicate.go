package engine

import (
	"strings"
	"time"

	"homecrew/internal/domain"
)

// DuplicateExists reports whether the candidate mission duplicates an
// existing one: same home, same owning conciergerie, task sets equal as
// sets, and start/end equal at minute resolution. excludeID skips the
// mission being edited so a record never matches itself.
func DuplicateExists(candidate domain.Mission, missions []domain.Mission, excludeID string) bool {
	for _, m := range missions {
		if excludeID != "" && m.ID == excludeID {
			continue
		}
		if m.HomeID != candidate.HomeID || m.Conciergerie != candidate.Conciergerie {
			continue
		}
		if !sameTaskSet(m.Tasks, candidate.Tasks) {
			continue
		}
		if sameMinute(m.Start, candidate.Start) && sameMinute(m.End, candidate.End) {
			return true
		}
	}
	return false
}

// sameTaskSet compares task labels case-insensitively and order-independently.
func sameTaskSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]int, len(a))
	for _, t := range a {
		set[strings.ToLower(t)]++
	}
	for _, t := range b {
		key := strings.ToLower(t)
		set[key]--
		if set[key] < 0 {
			return false
		}
	}
	return true
}

func sameMinute(a, b string) bool {
	ta, err := time.Parse(time.RFC3339, a)
	if err != nil {
		return false
	}
	tb, err := time.Parse(time.RFC3339, b)
	if err != nil {
		return false
	}
	return ta.UTC().Truncate(time.Minute).Equal(tb.UTC().Truncate(time.Minute))
}
