package service

import (
	"go.uber.org/zap"

	"github.com/newuzbdev/edunite/internal/models"
	"github.com/newuzbdev/edunite/internal/scheduling"
)

// groupWeekdays parses the group's schedule text. A text naming no weekday
// falls back to Monday-Friday, which is logged and counted; the bool is false
// in that case.
func groupWeekdays(group models.Group, logger *zap.Logger, metrics *MetricsService) (scheduling.WeekdaySet, bool) {
	set, ok := scheduling.ParseWeekdays(group.Schedule)
	if !ok {
		logger.Warn("schedule text names no weekday, using Monday-Friday",
			zap.String("group_id", group.ID),
			zap.String("schedule", group.Schedule),
		)
		metrics.RecordParseFallback()
	}
	return set, ok
}
