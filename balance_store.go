package corebank

import (
	"sync"
	"time"
)

// BalanceStore is C4: per-account and per-GL daily balance rows, with
// the "latest <= D" lookup every other component relies on. The two
// "analogous" row families share one implementation parameterized by
// BalanceKind, since Account-Balance and GL-Balance operations mirror
// each other.
type BalanceStore struct {
	storage *Storage
	clock *SystemClock

	rowLocksMu sync.Mutex
	rowLocks map[string]*sync.Mutex
}

func NewBalanceStore(storage *Storage, clock *SystemClock) *BalanceStore {
	return &BalanceStore{
		storage: storage,
		clock: clock,
		rowLocks: make(map[string]*sync.Mutex),
	}
}

// lockFor returns the row lock for (kind, key), creating it on first
// use, the in-process analogue of "row lock taken for update
// during postings".
func (b *BalanceStore) lockFor(kind BalanceKind, key string) *sync.Mutex {
	lockKey := key
	if kind == BalanceKindGL {
		lockKey = "gl:" + key
	} else {
		lockKey = "acct:" + key
	}
	b.rowLocksMu.Lock()
	defer b.rowLocksMu.Unlock()
	l, ok := b.rowLocks[lockKey]
	if !ok {
		l = &sync.Mutex{}
		b.rowLocks[lockKey] = l
	}
	return l
}

// LatestByAccount is latestByAccount(accountNo, asOf): the row
// for the greatest tranDate <= asOf, or a zero-value row when none
// exists (new account, tier 3 of the opening-balance fallback).
func (b *BalanceStore) LatestByAccount(accountNo string, asOf time.Time) (BalanceRow, error) {
	return b.latest(BalanceKindAccount, accountNo, asOf)
}

func (b *BalanceStore) LatestByGL(glNum string, asOf time.Time) (BalanceRow, error) {
	return b.latest(BalanceKindGL, glNum, asOf)
}

func (b *BalanceStore) latest(kind BalanceKind, key string, asOf time.Time) (BalanceRow, error) {
	row, found, err := b.storage.LatestBalanceRowOnOrBefore(kind, key, asOf)
	if err != nil {
		return BalanceRow{}, IOErrorf(CodeBalanceRowMissing, err, "reading balance row for %q", key)
	}
	if !found {
		return BalanceRow{Key: key, TranDate: truncateToDate(asOf)}, nil
	}
	return row, nil
}

// TodayRow is todayRow(accountNo): creates-if-absent a row at
// System_Date seeded with zeros (and the prior day's closing balance
// carried forward as OpeningBal) on first posting.
func (b *BalanceStore) TodayRow(kind BalanceKind, key string) (BalanceRow, error) {
	today, err := b.clock.Now()
	if err != nil {
		return BalanceRow{}, err
	}
	row, found, err := b.storage.GetBalanceRow(kind, key, today)
	if err != nil {
		return BalanceRow{}, IOErrorf(CodeBalanceRowMissing, err, "reading today's balance row for %q", key)
	}
	if found {
		return row, nil
	}
	prior, err := b.latest(kind, key, today.AddDate(0, 0, -1))
	if err != nil {
		return BalanceRow{}, err
	}
	row = BalanceRow{
		Key: key,
		TranDate: today,
		OpeningBal: prior.ClosingBal,
		CurrentBalance: prior.ClosingBal,
		LastUpdated: today,
	}
	row.ClosingBal = closingBalFromSums(row.OpeningBal, row.CrSummation, row.DrSummation)
	row.AvailableBalance = row.CurrentBalance
	if err := b.storage.PutBalanceRow(kind, row); err != nil {
		return BalanceRow{}, IOErrorf(CodeBalanceRowMissing, err, "creating today's balance row for %q", key)
	}
	return row, nil
}

// UpdateForPosting atomically increments DrSummation/CrSummation,
// recomputes ClosingBal/CurrentBalance/AvailableBalance and stamps
// LastUpdated, serialized per-row via the in-process row lock.
func (b *BalanceStore) UpdateForPosting(kind BalanceKind, key string, flag DrCrFlag, amount Money) (BalanceRow, error) {
	lock := b.lockFor(kind, key)
	lock.Lock()
	defer lock.Unlock()

	row, err := b.TodayRow(kind, key)
	if err != nil {
		return BalanceRow{}, err
	}
	if flag == Debit {
		row.DrSummation = row.DrSummation.Add(amount)
	} else {
		row.CrSummation = row.CrSummation.Add(amount)
	}
	row.ClosingBal = closingBalFromSums(row.OpeningBal, row.CrSummation, row.DrSummation)
	row.CurrentBalance = row.ClosingBal
	row.AvailableBalance = row.CurrentBalance
	now, err := b.clock.Now()
	if err != nil {
		return BalanceRow{}, err
	}
	row.LastUpdated = now
	if err := b.storage.PutBalanceRow(kind, row); err != nil {
		return BalanceRow{}, IOErrorf(CodeBalanceRowMissing, err, "updating balance row for %q", key)
	}
	return row, nil
}
