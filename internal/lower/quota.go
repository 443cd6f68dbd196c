package lower

// QuotaEnforcer counts fixed-point sweeps over one module and enforces a
// maximum.
//
// Rules that produce ops other rules match can ping-pong forever; the quota
// turns that into an error instead of a hang.
type QuotaEnforcer struct {
	maxSweeps int
	current   int
}

// NewQuotaEnforcer creates a quota enforcer with the given limit.
func NewQuotaEnforcer(maxSweeps int) *QuotaEnforcer {
	return &QuotaEnforcer{maxSweeps: maxSweeps}
}

// Check increments the sweep counter and validates it against the limit.
//
// Returns QuotaExceededError if the quota is exceeded.
func (q *QuotaEnforcer) Check(module string) error {
	q.current++
	if q.current > q.maxSweeps {
		return &QuotaExceededError{
			Module: module,
			Sweeps: q.current,
			Limit:  q.maxSweeps,
		}
	}
	return nil
}

// Reset resets the sweep counter to 0.
func (q *QuotaEnforcer) Reset() {
	q.current = 0
}

// Current returns the current sweep count.
func (q *QuotaEnforcer) Current() int {
	return q.current
}

// MaxSweeps returns the limit.
func (q *QuotaEnforcer) MaxSweeps() int {
	return q.maxSweeps
}
