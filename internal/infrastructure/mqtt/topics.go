package mqtt

import "fmt"

// Topic prefixes for the Sweep Core MQTT hierarchy.
//
// Instrument bridge topics use the flat scheme:
// sweepcore/{category}/{instrument}/{subject}
const (
	// TopicPrefixBridge is the base for all instrument bridge topics.
	// Flat scheme: sweepcore/{category}/{instrument}/{subject}
	TopicPrefixBridge = "sweepcore"

	// TopicPrefixCore is the base for all core topics.
	TopicPrefixCore = "sweepcore/core"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "sweepcore/system"
)

// Topics provides builders for Sweep Core MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	cmdTopic := topics.InstrumentSet("tem-01", "focus")
//	// Returns: "sweepcore/set/tem-01/focus"
type Topics struct{}

// =============================================================================
// Instrument Bridge Topics
// =============================================================================

// InstrumentSet returns the topic for set-point commands to an
// instrument bridge.
//
// Example: sweepcore/set/tem-01/focus
func (Topics) InstrumentSet(instrumentID, variableID string) string {
	return fmt.Sprintf("%s/set/%s/%s", TopicPrefixBridge, instrumentID, variableID)
}

// InstrumentAck returns the topic for set-point acknowledgements from
// an instrument bridge.
//
// Example: sweepcore/ack/tem-01/focus
func (Topics) InstrumentAck(instrumentID, variableID string) string {
	return fmt.Sprintf("%s/ack/%s/%s", TopicPrefixBridge, instrumentID, variableID)
}

// InstrumentCapture returns the topic for capture requests to an
// instrument bridge.
//
// Example: sweepcore/capture/tem-01/req-abc123
func (Topics) InstrumentCapture(instrumentID, requestID string) string {
	return fmt.Sprintf("%s/capture/%s/%s", TopicPrefixBridge, instrumentID, requestID)
}

// InstrumentCaptureResult returns the topic for capture results from an
// instrument bridge.
//
// Example: sweepcore/capture-result/tem-01/req-abc123
func (Topics) InstrumentCaptureResult(instrumentID, requestID string) string {
	return fmt.Sprintf("%s/capture-result/%s/%s", TopicPrefixBridge, instrumentID, requestID)
}

// InstrumentHealth returns the topic for instrument bridge health
// status.
//
// Example: sweepcore/health/tem-01
func (Topics) InstrumentHealth(instrumentID string) string {
	return fmt.Sprintf("%s/health/%s", TopicPrefixBridge, instrumentID)
}

// =============================================================================
// Core Topics
// =============================================================================

// CoreRunStatus returns the topic for run lifecycle events.
//
// Example: sweepcore/core/run/run-abc123/status
func (Topics) CoreRunStatus(runID string) string {
	return fmt.Sprintf("%s/run/%s/status", TopicPrefixCore, runID)
}

// CoreRunProgress returns the topic for per-step run progress.
//
// Example: sweepcore/core/run/run-abc123/progress
func (Topics) CoreRunProgress(runID string) string {
	return fmt.Sprintf("%s/run/%s/progress", TopicPrefixCore, runID)
}

// CoreEvent returns the topic for system events.
//
// Example: sweepcore/core/event/run_started
func (Topics) CoreEvent(eventType string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefixCore, eventType)
}

// =============================================================================
// System Topics
// =============================================================================

// SystemStatus returns the system status topic.
//
// Example: sweepcore/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// SystemShutdown returns the shutdown signal topic.
//
// Example: sweepcore/system/shutdown
func (Topics) SystemShutdown() string {
	return fmt.Sprintf("%s/shutdown", TopicPrefixSystem)
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllInstrumentAcks returns a pattern matching all set-point
// acknowledgements.
//
// Pattern: sweepcore/ack/+/+
func (Topics) AllInstrumentAcks() string {
	return fmt.Sprintf("%s/ack/+/+", TopicPrefixBridge)
}

// InstrumentAcks returns a pattern matching all acknowledgements from one
// instrument, any variable.
//
// Pattern: sweepcore/ack/{instrumentID}/+
func (Topics) InstrumentAcks(instrumentID string) string {
	return fmt.Sprintf("%s/ack/%s/+", TopicPrefixBridge, instrumentID)
}

// InstrumentCaptureResults returns a pattern matching all capture results
// from one instrument, any request.
//
// Pattern: sweepcore/capture-result/{instrumentID}/+
func (Topics) InstrumentCaptureResults(instrumentID string) string {
	return fmt.Sprintf("%s/capture-result/%s/+", TopicPrefixBridge, instrumentID)
}

// AllInstrumentCaptureResults returns a pattern matching all capture
// results.
//
// Pattern: sweepcore/capture-result/+/+
func (Topics) AllInstrumentCaptureResults() string {
	return fmt.Sprintf("%s/capture-result/+/+", TopicPrefixBridge)
}

// AllInstrumentHealth returns a pattern matching all instrument health
// updates.
//
// Pattern: sweepcore/health/+
func (Topics) AllInstrumentHealth() string {
	return fmt.Sprintf("%s/health/+", TopicPrefixBridge)
}

// AllRunStatus returns a pattern matching all run status events.
//
// Pattern: sweepcore/core/run/+/status
func (Topics) AllRunStatus() string {
	return fmt.Sprintf("%s/run/+/status", TopicPrefixCore)
}

// AllCoreEvents returns a pattern matching all core events.
//
// Pattern: sweepcore/core/event/+
func (Topics) AllCoreEvents() string {
	return fmt.Sprintf("%s/event/+", TopicPrefixCore)
}

// AllTopics returns a pattern matching all Sweep Core topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: sweepcore/#
func (Topics) AllTopics() string {
	return "sweepcore/#"
}
