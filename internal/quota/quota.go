// Package quota computes mission point values and a worker's cumulative
// daily workload across overlapping, multi-day missions.
package quota

import (
	"time"

	"homecrew/internal/domain"
)

// DailyCap is the maximum points a mission may contribute to any single
// calendar day, and the ceiling enforced per worker per day at acceptance.
const DailyCap = 3.0

// Epsilon absorbs float error when comparing accumulated loads to the cap.
const Epsilon = 1e-9

// Points is the computed workload of one mission.
type Points struct {
	Total  int     `json:"total"`
	PerDay float64 `json:"per_day"`
}

// MissionPoints sums the catalog weights of the mission's task set and
// spreads the total over its inclusive calendar-day span, capped at DailyCap.
func MissionPoints(m domain.Mission) Points {
	total := 0
	for _, t := range m.Tasks {
		total += domain.PointsOf(t)
	}
	start, end, ok := missionSpan(m)
	span := 1
	if ok {
		span = daySpan(start, end)
	}
	perDay := float64(total) / float64(span)
	if perDay > DailyCap {
		perDay = DailyCap
	}
	return Points{Total: total, PerDay: perDay}
}

// EmployeeLoadForDay sums the day-specific contributions of every
// non-completed mission held by the employee whose span covers day,
// excluding excludeID. The target day decides the attribution:
//
//   - today or future: the mission total is spread over the days remaining
//     from the later of the mission start or the target day through the
//     mission end, capped at DailyCap;
//   - strictly past, last day of the mission: the entire mission total is
//     attributed to that day so the full value is always counted somewhere;
//   - strictly past, not the last day: spread from the target day through
//     the mission end, capped at DailyCap.
//
// now supplies "today"; callers pass a consistent snapshot of missions.
func EmployeeLoadForDay(employeeID string, day time.Time, missions []domain.Mission, excludeID string, now time.Time) float64 {
	target := dayOf(day)
	today := dayOf(now)
	var load float64
	for _, m := range missions {
		if m.EmployeeID == nil || *m.EmployeeID != employeeID {
			continue
		}
		if m.StatusOf() == domain.StatusCompleted {
			continue
		}
		if excludeID != "" && m.ID == excludeID {
			continue
		}
		start, end, ok := missionSpan(m)
		if !ok {
			continue
		}
		if target.Before(start) || target.After(end) {
			continue
		}
		total := 0
		for _, t := range m.Tasks {
			total += domain.PointsOf(t)
		}
		switch {
		case !target.Before(today):
			from := start
			if from.Before(target) {
				from = target
			}
			load += capped(total, daySpan(from, end))
		case target.Equal(end):
			load += float64(total)
		default:
			load += capped(total, daySpan(target, end))
		}
	}
	return load
}

// DaysOf returns each calendar day of the mission span in order.
func DaysOf(m domain.Mission) []time.Time {
	start, end, ok := missionSpan(m)
	if !ok {
		return nil
	}
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

func capped(total, span int) float64 {
	v := float64(total) / float64(span)
	if v > DailyCap {
		v = DailyCap
	}
	return v
}

func missionSpan(m domain.Mission) (start, end time.Time, ok bool) {
	s, err := time.Parse(time.RFC3339, m.Start)
	if err != nil {
		return start, end, false
	}
	e, err := time.Parse(time.RFC3339, m.End)
	if err != nil {
		return start, end, false
	}
	return dayOf(s), dayOf(e), true
}

// dayOf strips the time of day, normalizing to UTC midnight.
func dayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// daySpan is the inclusive day count between two normalized dates, never
// less than 1.
func daySpan(start, end time.Time) int {
	n := int(end.Sub(start).Hours()/24) + 1
	if n < 1 {
		n = 1
	}
	return n
}
