package diskcache

// accountant tracks the total bytes occupied by live entries against the
// configured budget. It is only read and mutated while the cache mutex is
// held, in the same critical section as the store mutation it accounts for,
// so the two can never diverge.
type accountant struct {
	maxBytes int64
	current  int64
}

// size returns the current total of live entry bytes.
func (a *accountant) size() int64 {
	return a.current
}

// reserve adjusts the running total by delta (positive on write, negative on
// delete or eviction) and returns the new total.
func (a *accountant) reserve(delta int64) int64 {
	a.current += delta
	return a.current
}

// overBudgetBy returns how many bytes the current total exceeds the budget
// by, or zero when under budget.
func (a *accountant) overBudgetBy() int64 {
	if a.current <= a.maxBytes {
		return 0
	}
	return a.current - a.maxBytes
}
