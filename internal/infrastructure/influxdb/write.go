package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteStepValue records an applied variable value for one sweep step.
//
// This is the primary method for recording per-step telemetry during a run.
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - runID: Identifier of the run this step belongs to
//   - stepIndex: Zero-based global index of the step within the run
//   - variableID: Variable the value was applied to (e.g., "focus")
//   - value: The uncalibrated value that was applied
//
// Example:
//
//	client.WriteStepValue("run-abc123", 42, "focus", 1.25)
func (c *Client) WriteStepValue(runID string, stepIndex int, variableID string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"step_values",
		map[string]string{
			"run_id":   runID,
			"variable": variableID,
		},
		map[string]interface{}{
			"value":      value,
			"step_index": stepIndex,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteStepTiming records how long one sweep step took to complete.
//
// Durations are split so settle time and capture time can be tracked
// independently when tuning a sweep.
//
// Parameters:
//   - runID: Identifier of the run
//   - stepIndex: Zero-based global index of the step
//   - settle: Time spent waiting for the instrument to settle
//   - capture: Time spent waiting for the capture to complete
func (c *Client) WriteStepTiming(runID string, stepIndex int, settle, capture time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"step_timing",
		map[string]string{
			"run_id": runID,
		},
		map[string]interface{}{
			"step_index": stepIndex,
			"settle_ms":  float64(settle.Microseconds()) / 1000.0,
			"capture_ms": float64(capture.Microseconds()) / 1000.0,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteRunProgress records the completion fraction of an active run.
//
// Parameters:
//   - runID: Identifier of the run
//   - completed: Number of steps completed so far
//   - total: Total number of steps in the run
func (c *Client) WriteRunProgress(runID string, completed, total int) {
	if !c.IsConnected() {
		return
	}

	fields := map[string]interface{}{
		"completed": completed,
		"total":     total,
	}
	if total > 0 {
		fields["fraction"] = float64(completed) / float64(total)
	}

	point := write.NewPoint(
		"run_progress",
		map[string]string{
			"run_id": runID,
		},
		fields,
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteRunSummary records the final outcome of a run.
//
// Parameters:
//   - runID: Identifier of the run
//   - status: Final status ("completed", "failed", "stopped")
//   - totalSteps: Total number of steps the schedule contained
//   - completedSteps: Number of steps that finished before the run ended
//   - elapsed: Wall-clock duration of the run
func (c *Client) WriteRunSummary(runID string, status string, totalSteps, completedSteps int, elapsed time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"run_summary",
		map[string]string{
			"run_id": runID,
			"status": status,
		},
		map[string]interface{}{
			"total_steps":     totalSteps,
			"completed_steps": completedSteps,
			"elapsed_seconds": elapsed.Seconds(),
			"completed":       strconv.FormatBool(completedSteps == totalSteps),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteInstrumentHealth records a health reading reported by an instrument bridge.
//
// Parameters:
//   - instrumentID: Identifier of the instrument (e.g., "tem-01")
//   - online: Whether the bridge reported itself reachable
//   - latency: Round-trip latency of the last command, zero if unknown
func (c *Client) WriteInstrumentHealth(instrumentID string, online bool, latency time.Duration) {
	if !c.IsConnected() {
		return
	}

	onlineVal := 0
	if online {
		onlineVal = 1
	}

	fields := map[string]interface{}{
		"online": onlineVal,
	}
	if latency > 0 {
		fields["latency_ms"] = float64(latency.Microseconds()) / 1000.0
	}

	point := write.NewPoint(
		"instrument_health",
		map[string]string{
			"instrument_id": instrumentID,
		},
		fields,
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("system_stats",
//	    map[string]string{"host": "core-01"},
//	    map[string]interface{}{"cpu_percent": 45.2, "memory_mb": 512})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
