package domain

import "strings"

// Task kinds a mission can carry.
const (
	TaskCleaning  = "cleaning"
	TaskGardening = "gardening"
	TaskArrival   = "arrival"
	TaskDeparture = "departure"
)

// arrivalHours is the fixed time cost of an arrival or departure walkthrough.
const arrivalHours = 0.5

var taskPoints = map[string]int{
	TaskCleaning:  2,
	TaskGardening: 2,
	TaskArrival:   1,
	TaskDeparture: 1,
}

// KnownTask reports whether kind names a catalog task.
func KnownTask(kind string) bool {
	_, ok := taskPoints[strings.ToLower(kind)]
	return ok
}

// TaskKinds lists the catalog in a stable order.
func TaskKinds() []string {
	return []string{TaskCleaning, TaskGardening, TaskArrival, TaskDeparture}
}

// PointsOf returns the workload weight of a task kind, 0 for unknown kinds.
func PointsOf(kind string) int {
	return taskPoints[strings.ToLower(kind)]
}

// HoursOf returns the time cost of a task kind at a given home.
// Cleaning and gardening hours are configured per home; arrival and
// departure are a flat half hour each.
func HoursOf(h Home, kind string) float64 {
	switch strings.ToLower(kind) {
	case TaskCleaning:
		return h.CleaningHours
	case TaskGardening:
		return h.GardeningHours
	case TaskArrival, TaskDeparture:
		return arrivalHours
	default:
		return 0
	}
}

// EstimatedHours sums HoursOf over a task set.
func EstimatedHours(h Home, tasks []string) float64 {
	var total float64
	for _, t := range tasks {
		total += HoursOf(h, t)
	}
	return total
}
