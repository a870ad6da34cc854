package worker

// inbox implements one of the two cross-worker co-spawn delivery modes.
// deliver is called by a remote producer (a goroutine
// not running on target's OS thread); onWake is called by target's own
// Run loop when it reaps the reserved wake CQE the inbox arranged for.
type inbox interface {
	// deliver hands h to target from some other worker's goroutine.
	deliver(target *Worker, h Handle)
	// onWake runs on w's own loop after its registered wake SQE fires,
	// and is responsible for re-arming that SQE and forwarding any
	// delivered handles onto w's ready-queue.
	onWake(w *Worker)
	// close releases any OS resources the inbox holds (eventfd, etc).
	close() error
}
