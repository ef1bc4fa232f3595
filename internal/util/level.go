package util

import (
	"fmt"

	"github.com/ecocampus/ecocampus-server/internal/config"
)

// LevelProgress is a user's place on the level ladder.
type LevelProgress struct {
	config.Level
	// Progress is the percentage towards the next level, 0-100.
	Progress     float64 `json:"progress"`
	ProgressText string  `json:"progress_text"`
}

// LevelFor finds the highest level whose minimum points is at most points.
// levels must be sorted by MinPoints with the first at 0.
func LevelFor(points int, levels []config.Level) LevelProgress {
	if len(levels) == 0 {
		return LevelProgress{ProgressText: "Max Level"}
	}
	current := levels[0]
	for i := len(levels) - 1; i >= 0; i-- {
		if points >= levels[i].MinPoints {
			current = levels[i]
			break
		}
	}

	lp := LevelProgress{Level: current, ProgressText: "Max Level"}
	if current.NextMin > current.MinPoints {
		span := float64(current.NextMin - current.MinPoints)
		lp.Progress = min(100, max(0, float64(points-current.MinPoints)/span*100))
		lp.ProgressText = fmt.Sprintf("%d / %d Pts", points, current.NextMin)
	}
	return lp
}
