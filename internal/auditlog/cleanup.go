package auditlog

import "time"

// retentionSweepInterval is how often expired log entries are purged on the
// SQL backends. MongoDB relies on a TTL index instead.
const retentionSweepInterval = time.Hour

// runRetentionSweep calls purge immediately and then once per interval until
// stop is closed.
func runRetentionSweep(stop <-chan struct{}, purge func()) {
	purge()

	ticker := time.NewTicker(retentionSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			purge()
		case <-stop:
			return
		}
	}
}
