package quota_test

import (
	"math"
	"testing"
	"time"

	"homecrew/internal/domain"
	"homecrew/internal/quota"
)

func mission(id, employeeID, status, start, end string, tasks ...string) domain.Mission {
	m := domain.Mission{
		ID:    id,
		Tasks: tasks,
		Start: start,
		End:   end,
	}
	if employeeID != "" {
		m.EmployeeID = &employeeID
	}
	if status != "" {
		m.Status = &status
	}
	return m
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestMissionPoints(t *testing.T) {
	cases := []struct {
		name    string
		m       domain.Mission
		total   int
		perDay  float64
	}{
		{
			name:   "single day single task",
			m:      mission("m1", "", "", "2026-09-01T09:00:00Z", "2026-09-01T10:00:00Z", "arrival"),
			total:  1,
			perDay: 1,
		},
		{
			name:   "single day full set capped",
			m:      mission("m2", "", "", "2026-09-01T08:00:00Z", "2026-09-01T18:00:00Z", "cleaning", "gardening", "arrival", "departure"),
			total:  6,
			perDay: 3,
		},
		{
			name:   "two days full set still capped",
			m:      mission("m3", "", "", "2026-09-01T08:00:00Z", "2026-09-02T18:00:00Z", "cleaning", "gardening", "arrival", "departure"),
			total:  6,
			perDay: 3,
		},
		{
			name:   "three days spreads under cap",
			m:      mission("m4", "", "", "2026-09-01T08:00:00Z", "2026-09-03T18:00:00Z", "cleaning", "gardening", "arrival", "departure"),
			total:  6,
			perDay: 2,
		},
		{
			name:   "overnight counts both days",
			m:      mission("m5", "", "", "2026-09-01T22:00:00Z", "2026-09-02T02:00:00Z", "cleaning", "gardening"),
			total:  4,
			perDay: 2,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pts := quota.MissionPoints(tc.m)
			if pts.Total != tc.total {
				t.Fatalf("total = %d, want %d", pts.Total, tc.total)
			}
			if !almostEqual(pts.PerDay, tc.perDay) {
				t.Fatalf("per day = %v, want %v", pts.PerDay, tc.perDay)
			}
		})
	}
}

func TestEmployeeLoadForDayFuture(t *testing.T) {
	now := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	held := []domain.Mission{
		// 3-day mission worth 6 points, Sep 1-3.
		mission("m1", "emp", "accepted", "2026-09-01T08:00:00Z", "2026-09-03T18:00:00Z",
			"cleaning", "gardening", "arrival", "departure"),
	}
	// Viewed from its first day the whole span remains: 6/3 = 2.
	got := quota.EmployeeLoadForDay("emp", time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), held, "", now)
	if !almostEqual(got, 2) {
		t.Fatalf("day 1 load = %v, want 2", got)
	}
	// On the last day only one day remains; 6/1 caps at 3.
	got = quota.EmployeeLoadForDay("emp", time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC), held, "", now)
	if !almostEqual(got, 3) {
		t.Fatalf("day 3 load = %v, want 3", got)
	}
	// Outside the span there is no load.
	got = quota.EmployeeLoadForDay("emp", time.Date(2026, 9, 4, 0, 0, 0, 0, time.UTC), held, "", now)
	if !almostEqual(got, 0) {
		t.Fatalf("day 4 load = %v, want 0", got)
	}
}

func TestEmployeeLoadForDayPast(t *testing.T) {
	now := time.Date(2026, 9, 10, 8, 0, 0, 0, time.UTC)
	held := []domain.Mission{
		mission("m1", "emp", "started", "2026-09-01T08:00:00Z", "2026-09-03T18:00:00Z",
			"cleaning", "gardening", "arrival", "departure"),
	}
	// A past last day carries the full total, uncapped.
	got := quota.EmployeeLoadForDay("emp", time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC), held, "", now)
	if !almostEqual(got, 6) {
		t.Fatalf("past last day load = %v, want 6", got)
	}
	// A past mid-span day spreads the remainder and stays capped.
	got = quota.EmployeeLoadForDay("emp", time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC), held, "", now)
	if !almostEqual(got, 3) {
		t.Fatalf("past mid day load = %v, want 3", got)
	}
}

func TestEmployeeLoadForDayFilters(t *testing.T) {
	now := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	day := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	held := []domain.Mission{
		mission("mine", "emp", "accepted", "2026-09-01T09:00:00Z", "2026-09-01T11:00:00Z", "arrival"),
		mission("other", "someone-else", "accepted", "2026-09-01T09:00:00Z", "2026-09-01T11:00:00Z", "cleaning"),
		mission("done", "emp", "completed", "2026-09-01T09:00:00Z", "2026-09-01T11:00:00Z", "cleaning"),
		mission("skip", "emp", "accepted", "2026-09-01T12:00:00Z", "2026-09-01T14:00:00Z", "departure"),
	}
	got := quota.EmployeeLoadForDay("emp", day, held, "skip", now)
	if !almostEqual(got, 1) {
		t.Fatalf("load = %v, want 1 (only the held arrival counts)", got)
	}
}

func TestDaysOf(t *testing.T) {
	m := mission("m1", "", "", "2026-09-01T22:00:00Z", "2026-09-03T02:00:00Z", "cleaning")
	days := quota.DaysOf(m)
	if len(days) != 3 {
		t.Fatalf("got %d days, want 3", len(days))
	}
	if !days[0].Equal(time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("first day = %v", days[0])
	}
	if !days[2].Equal(time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("last day = %v", days[2])
	}
}
