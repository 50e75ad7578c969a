// Package process provides generic subprocess lifecycle management.
//
// This package is designed for managing long-running child processes like
// instrument bridges (microscope controllers, camera servers) that Sweep
// Core supervises.
//
// Features:
//   - Start/stop subprocess with graceful shutdown
//   - Automatic restart on failure with configurable backoff
//   - Health monitoring and status reporting
//   - Log capture from subprocess stdout/stderr
//   - Context-based cancellation for clean shutdown
//
// Example usage:
//
//	mgr := process.NewManager(process.Config{
//	    Name:              "camera-bridge",
//	    Binary:            "/usr/local/bin/camera-bridge",
//	    Args:              []string{"--instrument", "cam-01"},
//	    RestartOnFailure:  true,
//	    RestartDelay:      5 * time.Second,
//	    MaxRestartAttempts: 10,
//	})
//
//	if err := mgr.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer mgr.Stop()
package process
