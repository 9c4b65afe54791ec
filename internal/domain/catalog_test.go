package domain_test

import (
	"testing"

	"homecrew/internal/domain"
)

func TestCatalog(t *testing.T) {
	for _, kind := range domain.TaskKinds() {
		if !domain.KnownTask(kind) {
			t.Fatalf("catalog kind %q not known", kind)
		}
		if domain.PointsOf(kind) <= 0 {
			t.Fatalf("kind %q has no weight", kind)
		}
	}
	if domain.KnownTask("plumbing") {
		t.Fatal("unknown kind accepted")
	}
	if !domain.KnownTask("CLEANING") {
		t.Fatal("kind lookup should be case-insensitive")
	}
}

func TestEstimatedHours(t *testing.T) {
	home := domain.Home{CleaningHours: 2, GardeningHours: 1.5}
	hours := domain.EstimatedHours(home, []string{"cleaning", "arrival", "departure"})
	if hours != 3 {
		t.Fatalf("hours = %v, want 3 (2 + 0.5 + 0.5)", hours)
	}
	if domain.HoursOf(home, "gardening") != 1.5 {
		t.Fatalf("gardening hours = %v", domain.HoursOf(home, "gardening"))
	}
}
