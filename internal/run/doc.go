// Package run executes measurement runs for Sweep Core.
//
// A run binds a normalized schedule to an instrument: every step's values
// are applied, the instrument settles, a capture is taken, and the result
// is persisted. Runs survive restarts through the SQLite repository; an
// interrupted run is marked failed on startup recovery.
//
// Architecture:
//
//	┌───────────────────────────────────────────────────────┐
//	│                  Engine (engine.go)                    │
//	│  One active run at a time, driven by a goroutine       │
//	│  ┌──────────────┐    ┌──────────────┐                 │
//	│  │  Repository  │    │  Namer       │                 │
//	│  │(repository.go)│   │ (namer.go)   │                 │
//	│  └──────────────┘    └──────────────┘                 │
//	│        │                                               │
//	│        ▼                                               │
//	│  ┌──────────────────────────────────────────────┐     │
//	│  │  Step Pipeline (per step)                     │     │
//	│  │  1. Apply each variable via Controller        │     │
//	│  │  2. Wait the settle delay                     │     │
//	│  │  3. Trigger Capture via Camera                │     │
//	│  │  4. Persist the capture record                │     │
//	│  │  5. Publish progress, record telemetry        │     │
//	│  └──────────────────────────────────────────────┘     │
//	└───────────────────────────────────────────────────────┘
//
// # Key Types
//
//   - Run: A scheduled or executing sweep with lifecycle timestamps
//   - Capture: One stored acquisition tied to a run and step index
//   - Engine: Orchestrator executing runs step by step
//   - Repository: SQLite persistence for runs and captures
//
// # Thread Safety
//
// Engine methods are safe for concurrent use. Only one run executes at a
// time; Start returns ErrRunActive while another run is in progress.
//
// # Usage
//
//	repo := run.NewSQLiteRepository(db)
//	engine := run.NewEngine(repo, controller, camera, run.EngineConfig{
//	    SettleDelay: 200 * time.Millisecond,
//	    NameFormat:  "{counter}_{time:20060102_150405}",
//	})
//	engine.SetLogger(log)
//
//	r, err := engine.Create(ctx, "focus sweep", seq)
//	if err != nil {
//	    return err
//	}
//	if err := engine.Start(ctx, r.ID); err != nil {
//	    return err
//	}
package run
