package orderbook

// MatchResult is the outcome of one submission.
type MatchResult struct {
	Trades []Trade
	// Remaining is the unfilled part of the incoming order, nil when
	// fully filled.
	Remaining *BookOrder
	// ShouldInsert reports whether Remaining was rested in the book.
	ShouldInsert bool
}

func (r *MatchResult) HasTrades() bool {
	return len(r.Trades) > 0
}

// FilledQty is the total quantity executed for this submission.
func (r *MatchResult) FilledQty() int64 {
	var total int64
	for _, t := range r.Trades {
		total += t.Qty
	}
	return total
}

// CancelResult reports whether an order was found and removed.
// Not-found is a legitimate outcome, not an error.
type CancelResult struct {
	Cancelled bool
	Order     *BookOrder
}
