// Package instrument provides the control surface for laboratory hardware.
//
// Sweep Core never talks to instruments directly. Each instrument is fronted
// by a bridge process (microscope controller, camera server) that speaks MQTT.
// This package defines the Controller and Camera interfaces the run engine
// drives, plus two implementations: an MQTT bridge client and a simulator.
//
// Architecture:
//
//	┌───────────────────────────────────────────────────────┐
//	│                 Run Engine (internal/run)              │
//	│        Controller.Apply()      Camera.Capture()        │
//	└───────────────┬───────────────────────┬───────────────┘
//	                ▼                       ▼
//	┌───────────────────────────────────────────────────────┐
//	│                 Bridge (bridge.go)                     │
//	│  1. Publish command with request_id                    │
//	│  2. Await ack / capture-result on subscribed topics    │
//	│  3. Correlate by request_id, enforce timeout           │
//	└───────────────────────┬───────────────────────────────┘
//	                        ▼ MQTT
//	        sweepcore/set/{instrument}/{variable}
//	        sweepcore/ack/{instrument}/{variable}
//	        sweepcore/capture/{instrument}/{request_id}
//	        sweepcore/capture-result/{instrument}/{request_id}
//
// # Key Types
//
//   - Controller: Applies a variable value to the instrument
//   - Camera: Triggers a capture and reports the stored file
//   - Bridge: MQTT-backed Controller + Camera for real hardware
//   - Simulator: In-process Controller + Camera for development and tests
//
// # Thread Safety
//
// Bridge and Simulator are safe for concurrent use from multiple goroutines.
// The run engine serialises commands per run, but health monitoring and API
// reads may overlap with an active run.
//
// # Usage
//
//	bridge, err := instrument.NewBridge(mqttClient, "tem-01", instrument.BridgeConfig{
//	    CommandTimeout: 5 * time.Second,
//	    CaptureTimeout: 30 * time.Second,
//	})
//	if err != nil {
//	    return err
//	}
//	defer bridge.Close()
//
//	if err := bridge.Apply(ctx, "focus", 1.25); err != nil {
//	    return err
//	}
package instrument
