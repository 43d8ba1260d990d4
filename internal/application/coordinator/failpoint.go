package coordinator

import (
	"fmt"
	"sync"
)

// FailpointTag identifies the injected failure in a run's error list when
// IT_ENABLE_FAILPOINTS fires.
const FailpointTag = "IT_FAILPOINT_TX_ROLLBACK_AFTER_CLAIM"

// Failpoints injects a single-shot unknown exception for every file, once
// IT_ENABLE_FAILPOINTS is set. The first claim attempt for a given file
// fails and rolls back; the retry on the next run proceeds normally and
// claims cleanly.
type Failpoints struct {
	enabled bool
	mu      sync.Mutex
	fired   map[string]bool
}

// NewFailpoints builds a Failpoints gate. enabled should come from
// Settings.ITEnableFailpoints.
func NewFailpoints(enabled bool) *Failpoints {
	return &Failpoints{enabled: enabled, fired: make(map[string]bool)}
}

// Fire returns a non-nil error the first time it is called for fileName,
// and nil on every subsequent call for that name or when the gate is
// disabled.
func (f *Failpoints) Fire(fileName string) error {
	if !f.enabled {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fired[fileName] {
		return nil
	}
	f.fired[fileName] = true
	return fmt.Errorf("%s: injected failure after claim", FailpointTag)
}
