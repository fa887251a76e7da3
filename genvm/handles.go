package genvm

import (
	"sync"
)

// runRegistry keeps a global registry of in-flight engine invocations keyed
// by run id. Entries exist only between spawn and cleanup; the registry
// backs the active-run gauge and lets operators correlate log lines with
// live sessions.
var runRegistry sync.Map // map[string]*session

// registerRun records a session under its run id for the duration of the
// invocation.
func registerRun(id string, s *session) {
	runRegistry.Store(id, s)
	activeRuns.Update(int64(ActiveRuns()))
}

// releaseRun removes the previously registered run. After this call the id
// no longer resolves.
func releaseRun(id string) {
	runRegistry.Delete(id)
	activeRuns.Update(int64(ActiveRuns()))
}

// lookupRun fetches the session associated with the given run id. The
// boolean return signals whether the id was found.
func lookupRun(id string) (*session, bool) {
	if v, ok := runRegistry.Load(id); ok {
		return v.(*session), true
	}
	return nil, false
}

// ActiveRuns returns the number of invocations currently in flight.
func ActiveRuns() int {
	n := 0
	runRegistry.Range(func(any, any) bool {
		n++
		return true
	})
	return n
}
