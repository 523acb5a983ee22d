package timing

import (
	"fmt"
	"time"

	"github.com/OFFIS-RIT/kgbuilder/pkg/ai"
	"github.com/OFFIS-RIT/kgbuilder/pkg/logger"
)

// FormatDuration renders d as hh:mm:ss.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}

// LogTaskMetrics logs the processing time of a task and the model usage
// collected while it ran.
func LogTaskMetrics(taskID string, elapsed time.Duration, metrics ai.ModelMetrics) {
	logger.Info(
		"[Worker] AI metrics",
		"task_id", taskID,
		"input_tokens", metrics.InputTokens,
		"output_tokens", metrics.OutputTokens,
		"total_tokens", metrics.TotalTokens,
		"duration", FormatDuration(time.Duration(metrics.DurationMs)*time.Millisecond),
	)
	logger.Info("[Worker] Processing time", "task_id", taskID, "duration", FormatDuration(elapsed))
}
