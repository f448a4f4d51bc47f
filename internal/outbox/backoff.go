package outbox

import (
	"math"
	"time"
)

// maxBackoff caps the exponential backoff window applied between retries.
const maxBackoff = 30 * time.Second

// backoffWindow returns min(30s, 5^retryCount seconds), the window a retried
// delivery must wait after its last update before it becomes claimable again.
// A delivery that has never been retried (retryCount <= 0) has no window and
// gets 0.
func backoffWindow(retryCount int) time.Duration {
	if retryCount <= 0 {
		return 0
	}
	seconds := math.Pow(5, float64(retryCount))
	d := time.Duration(seconds) * time.Second
	if d > maxBackoff || d < 0 {
		return maxBackoff
	}
	return d
}
