/*
Package diagnostics detects concurrency anomalies in routed inventory calls.

A Monitor keeps a tracker for every in-flight operation and reports three
kinds of anomaly:

  - race: two operations of the same type on the same resource start within
    the race window (10ms by default)
  - slow: an operation ends after the slow threshold (5s)
  - stuck: a deadlock scan finds an operation open past the deadlock
    threshold (30s)

Anomalies are logged through zap and counted; nothing is blocked or failed.
Operations still open after the stale timeout (5min) are dropped by
CleanupStaleOperations so the active count cannot grow without bound.

	mon := diagnostics.New(diagnostics.Config{Enabled: true, Logger: logger})
	id := mon.TrackStart("GetRootFolder", userID.String())
	res := svc.GetRootFolder(ctx, userID)
	mon.TrackEnd(id, res.Status != types.StatusFailed)

	go mon.Run(ctx, 30*time.Second)

Counters are atomics and the tracker maps are sync.Map values, so the fast
path takes no locks; the deadlock scan runs under its own mutex.
*/
package diagnostics
