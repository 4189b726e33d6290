package corebank

// BalanceQuery is C7: the real-time available-balance computation,
// built on top of C3/C4's stored rows plus today's in-flight
// legs. Grounded in `query_api.go`'s `GetAccountBalance`, replacing its
// "load everything and filter in memory" placeholder with the real
// 3-tier opening-balance fallback and today's-legs summation the spec
// requires.
type BalanceQuery struct {
	storage *Storage
	clock *SystemClock
	registry *AccountRegistry
	balances *BalanceStore
}

func NewBalanceQuery(storage *Storage, clock *SystemClock, registry *AccountRegistry, balances *BalanceStore) *BalanceQuery {
	return &BalanceQuery{storage: storage, clock: clock, registry: registry, balances: balances}
}

// summedLegs computes todayD/todayC: only legs currently in
// Entry, Posted or Verified are summed (reversals cancel by their own
// opposite legs, never by exclusion here).
func summedLegs(legs []Leg) (todayD, todayC Money) {
	todayD, todayC = Zero, Zero
	for _, l := range legs {
		if l.TranStatus != LegEntry && l.TranStatus != LegPosted && l.TranStatus != LegVerified {
			continue
		}
		if l.DrCrFlag == Debit {
			todayD = todayD.Add(l.LcyAmount)
		} else {
			todayC = todayC.Add(l.LcyAmount)
		}
	}
	return todayD, todayC
}

// Computed returns opening + todayC - todayD, without the loan-limit
// addition ("computed").
func (q *BalanceQuery) Computed(accountNo string) (Money, error) {
	systemDate, err := q.clock.Now()
	if err != nil {
		return Zero, err
	}
	opening, err := q.balances.LatestByAccount(accountNo, systemDate.AddDate(0, 0, -1))
	if err != nil {
		return Zero, err
	}
	legs, err := q.storage.LegsByAccountAndDate(accountNo, systemDate)
	if err != nil {
		return Zero, IOErrorf(CodeBalanceRowMissing, err, "reading today's legs for %q", accountNo)
	}
	todayD, todayC := summedLegs(legs)
	return opening.ClosingBal.Add(todayC).Sub(todayD), nil
}

// Available is full formula: computed + (loanLimit if asset
// else 0).
func (q *BalanceQuery) Available(accountNo string) (Money, error) {
	computed, err := q.Computed(accountNo)
	if err != nil {
		return Zero, err
	}
	info, err := q.registry.Resolve(accountNo)
	if err != nil {
		return Zero, err
	}
	if info.Classify() == GLAsset {
		return computed.Add(info.LoanLimit), nil
	}
	return computed, nil
}
