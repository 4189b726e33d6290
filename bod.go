package corebank

import (
	"time"

	"go.uber.org/zap"
)

// BODSummary is the before/after pending-count report calls for.
type BODSummary struct {
	BusinessDate string
	PendingBefore int
	PendingAfter int
	ProcessedCount int
	FailedTranID string
}

// BODProcessor is C11: on-demand promotion of Future-dated legs whose
// value date has arrived, applying the same balance and GL-movement
// effects Post does. Grounded in the same posting semantics as
// TransactionEngine.Post (C5): that logic lifted out of the
// Entry-only gate so it can run against already-Future legs instead.
type BODProcessor struct {
	storage *Storage
	clock *SystemClock
	registry *AccountRegistry
	balances *BalanceStore
	query *BalanceQuery
	coa *ChartOfAccounts
	history *TransactionHistory
	events *EventStore
	log *zap.Logger
}

func NewBODProcessor(
	storage *Storage,
	clock *SystemClock,
	registry *AccountRegistry,
	balances *BalanceStore,
	query *BalanceQuery,
	coa *ChartOfAccounts,
	history *TransactionHistory,
	events *EventStore,
	log *zap.Logger,
) *BODProcessor {
	if log == nil {
		log = zap.NewNop()
	}
	return &BODProcessor{
		storage: storage, clock: clock, registry: registry, balances: balances,
		query: query, coa: coa, history: history, events: events, log: log,
	}
}

// Run scans every Future leg, promotes the ones whose ValueDate has
// arrived, and stops recording progress on the one whose leg failed.
// All earlier-promoted legs in the run stay posted ("a mid-run
// failure rolls back the current leg but leaves earlier-in-run legs
// posted").
func (b *BODProcessor) Run(userID string) (BODSummary, error) {
	systemDate, err := b.clock.Now()
	if err != nil {
		return BODSummary{}, err
	}

	future, err := b.storage.LegsByStatus(LegFuture)
	if err != nil {
		return BODSummary{}, IOErrorf(CodeReportWrite, err, "reading Future legs")
	}

	due := make([]Leg, 0, len(future))
	for _, l := range future {
		if !l.ValueDate.After(systemDate) {
			due = append(due, l)
		}
	}

	summary := BODSummary{
		BusinessDate: dateKey(systemDate),
		PendingBefore: len(future),
	}

	for _, leg := range due {
		if err := b.promote(leg, systemDate); err != nil {
			summary.FailedTranID = leg.TranID
			summary.PendingAfter = summary.PendingBefore - summary.ProcessedCount
			b.log.Error("bod promotion failed", zap.String("tranId", leg.TranID), zap.Error(err))
			return summary, err
		}
		summary.ProcessedCount++
		if _, err := b.events.Append(EventBODPromote, BODPromotedPayload{TranID: leg.TranID}, systemDate, userID); err != nil {
			return summary, err
		}
	}

	summary.PendingAfter = summary.PendingBefore - summary.ProcessedCount
	b.log.Info("bod run complete",
		zap.String("businessDate", summary.BusinessDate),
		zap.Int("processed", summary.ProcessedCount),
		zap.Int("pendingBefore", summary.PendingBefore),
		zap.Int("pendingAfter", summary.PendingAfter),
	)
	return summary, nil
}

// promote applies the full posting semantics of Post to a single
// already-Future leg: resolve the account, re-validate it against
// current balances under the same §4.6 rule table Post enforces, then
// update account and GL balances, write the GL movement, and flip the
// leg to Posted. A leg that fails validation is left Future, not
// posted.
func (b *BODProcessor) promote(leg Leg, systemDate time.Time) error {
	info, err := b.registry.Resolve(leg.AccountNo)
	if err != nil {
		return err
	}
	available, err := b.query.Available(leg.AccountNo)
	if err != nil {
		return err
	}
	row, err := b.balances.TodayRow(BalanceKindAccount, leg.AccountNo)
	if err != nil {
		return err
	}
	if err := validateLeg(b.coa, info, leg.DrCrFlag, leg.LcyAmount, available, row.CurrentBalance); err != nil {
		return err
	}
	acctRow, err := b.balances.UpdateForPosting(BalanceKindAccount, leg.AccountNo, leg.DrCrFlag, leg.LcyAmount)
	if err != nil {
		return err
	}
	glRow, err := b.balances.UpdateForPosting(BalanceKindGL, info.GLNum, leg.DrCrFlag, leg.LcyAmount)
	if err != nil {
		return err
	}
	if err := b.storage.PutGLMovement(GLMovement{
		LegTranID: leg.TranID,
		GLNum: info.GLNum,
		DrCrFlag: leg.DrCrFlag,
		TranDate: leg.TranDate,
		ValueDate: leg.ValueDate,
		Amount: leg.LcyAmount,
		BalanceAfter: glRow.ClosingBal,
		Source: SourcePosting,
	}); err != nil {
		return IOErrorf(CodeReportWrite, err, "writing GL movement for leg %q", leg.TranID)
	}
	leg.TranStatus = LegPosted
	leg.BalanceAfterPosting = acctRow.CurrentBalance
	if err := b.storage.PutLeg(leg); err != nil {
		return IOErrorf(CodeReportWrite, err, "persisting leg %q", leg.TranID)
	}
	return nil
}
