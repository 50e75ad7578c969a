// Package influxdb provides InfluxDB connectivity for Sweep Core.
//
// It wraps the official influxdb-client-go v2 library with Sweep Core-specific
// patterns for connection management, telemetry writing, and health monitoring.
//
// # Purpose
//
// This package handles time-series data storage for:
//   - Per-step sweep telemetry (applied variable values, capture durations)
//   - Run progress and summary records
//   - Instrument health readings
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    URL:    "http://localhost:8086",
//	    Token:  "your-token",
//	    Org:    "quench-lab",
//	    Bucket: "sweeps",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Record an applied step value
//	client.WriteStepValue("run-abc", 42, "focus", 1.25)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are logged via a callback.
// Connection and health check errors are returned directly.
//
// # Performance
//
// Writes are batched according to config.yaml settings (batch_size, flush_interval).
// This keeps network overhead low during fast sweeps with many steps.
package influxdb
