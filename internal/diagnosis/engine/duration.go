// internal/diagnosis/engine/duration.go
package engine

import (
	"fmt"

	"diagnosis-workers/internal/diagnosis/knowledgebase"
)

// DurationCheck is the duration annotation for the primary candidate.
type DurationCheck struct {
	Flag    DurationFlag
	Warning string
}

// checkDuration compares days against the inclusive [min,max] bounds of c.
// A chronic condition only warns when days is far below its minimum.
func checkDuration(days int, c knowledgebase.Condition, chronicShortFactor float64) (DurationCheck, bool) {
	if c.IsChronic {
		if float64(days) < float64(c.DurationMin)*chronicShortFactor {
			return DurationCheck{
				Flag:    DurationEarly,
				Warning: fmt.Sprintf("%d days is unusually early for this presentation of %s, which is usually long-standing.", days, c.Name),
			}, true
		}
		return DurationCheck{}, false
	}

	switch {
	case days < c.DurationMin:
		return DurationCheck{
			Flag: DurationEarly,
			Warning: fmt.Sprintf("%d days is unusually early for this presentation; %s typically lasts %d-%d days.",
				days, c.Name, c.DurationMin, c.DurationMax),
		}, true
	case days > c.DurationMax:
		return DurationCheck{
			Flag: DurationProlonged,
			Warning: fmt.Sprintf("%d days is longer than typical for %s (%d-%d days); consider escalation.",
				days, c.Name, c.DurationMin, c.DurationMax),
		}, true
	}
	return DurationCheck{}, false
}
