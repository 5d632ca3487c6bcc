// Package etl runs the checkpointed extract-transform-load cycle.
//
// A cycle walks the station list in order. For each station it extracts the
// departure estimates, cleans them and loads them, then saves a checkpoint
// whose index points at the next station. A failing station is logged and
// skipped. After the last station the cycle metrics are loaded and the
// checkpoint is deleted, so a checkpoint on disk always means an unfinished
// cycle that the next run resumes.
//
// Cancellation is only observed between stations. The station in flight
// finishes its write first, and the checkpoint is saved before returning.
//
//	sched, err := etl.NewScheduler(etl.Options{
//	    Extractor:   client,
//	    Transformer: transform.New(log),
//	    Loader:      store,
//	    Checkpoints: checkpoint.NewManager(path, log),
//	    Interval:    time.Minute,
//	})
//	err = sched.Start(ctx)
package etl
