package constraint

import (
	"sync"
	"time"

	"mercator-hq/saturn/pkg/pdl/ast"
)

// locations caches loaded timezones; policies reuse a handful of zones
// across many evaluations.
var locations sync.Map

func loadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	if cached, ok := locations.Load(name); ok {
		return cached.(*time.Location)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		// The validator rejects unknown timezones at compile time.
		loc = time.UTC
	}
	locations.Store(name, loc)
	return loc
}

// inWindow checks if the given time falls within a temporal window.
func inWindow(w *ast.TimeWindow, t time.Time) bool {
	localTime := t.In(loadLocation(w.Timezone))

	if len(w.DaysOfWeek) > 0 {
		dayOfWeek := int(localTime.Weekday())
		if dayOfWeek == 0 {
			dayOfWeek = 7 // Convert Sunday from 0 to 7
		}

		allowedDay := false
		for _, day := range w.DaysOfWeek {
			if dayOfWeek == day {
				allowedDay = true
				break
			}
		}
		if !allowedDay {
			return false
		}
	}

	hour := localTime.Hour()
	return hour >= w.StartHour && hour < w.EndHour
}
