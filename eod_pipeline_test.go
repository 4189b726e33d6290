package corebank

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestE5FullEODRunSucceeds is E5 from spec §8: a full 8-job EOD run
// over one posted-and-verified transaction produces Success logs for
// every job, populates GL_Balance, keeps the trial balance in
// agreement, and advances System_Date.
func TestE5FullEODRunSucceeds(t *testing.T) {
	tl := newTestLedger(t)
	tl.seedBasicChart(t)
	tl.Clock.Set(mustDate(t, "2024-01-15"), "setup")
	tl.openAccount(t, "CUST0001", "110101000", true, NewMoney("5000.00"), Zero)
	tl.openAccount(t, "OFFC0001", "110102000", false, Zero, Zero)

	base, _, err := tl.Engine.Create(mustDate(t, "2024-01-15"), "eod test", []LegInput{
		{AccountNo: "CUST0001", Flag: Debit, Currency: "USD", LcyAmount: NewMoney("1000.00")},
		{AccountNo: "OFFC0001", Flag: Credit, Currency: "USD", LcyAmount: NewMoney("1000.00")},
	}, "tester")
	require.NoError(t, err)
	_, err = tl.Engine.Post(base, "tester")
	require.NoError(t, err)
	_, err = tl.Engine.Verify(base, "tester")
	require.NoError(t, err)

	result, err := tl.EOD.RunAll("eodop")
	require.NoError(t, err)
	require.Len(t, result.Jobs, len(eodJobOrder))
	for _, jr := range result.Jobs {
		assert.Equal(t, EODSuccess, jr.Status, "job %q should succeed", jr.JobName)
	}

	glRow, found, err := tl.Storage.GetBalanceRow(BalanceKindGL, "110101000", mustDate(t, "2024-01-15"))
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, glRow.DrSummation.Equal(NewMoney("1000.00")))

	glRow2, found, err := tl.Storage.GetBalanceRow(BalanceKindGL, "110102000", mustDate(t, "2024-01-15"))
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, glRow2.CrSummation.Equal(NewMoney("1000.00")))

	newDate, err := tl.Clock.Now()
	require.NoError(t, err)
	assert.True(t, newDate.Equal(mustDate(t, "2024-01-16")), "Job 8 advances System_Date by exactly one day")

	lastDate, found, err := tl.Storage.GetParameter("Last_EOD_Date")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "20240115", lastDate)
}

// TestE6TrialBalanceImbalanceFailsJob7 is E6: a synthetic GL movement
// with no opposite leg lets Job 5 complete (it does not itself check
// DR=CR) but fails Job 7 with TrialBalanceImbalanced, leaving
// System_Date unchanged.
func TestE6TrialBalanceImbalanceFailsJob7(t *testing.T) {
	tl := newTestLedger(t)
	tl.seedBasicChart(t)
	tl.Clock.Set(mustDate(t, "2024-01-15"), "setup")
	tl.openAccount(t, "CUST0001", "110101000", true, NewMoney("5000.00"), Zero)

	// A lone debit GL movement with no balancing credit anywhere,
	// bypassing the engine's own balance check to simulate corrupted
	// upstream data reaching Job 5.
	require.NoError(t, tl.Storage.PutGLMovement(GLMovement{
		LegTranID: "SYNTHETIC-1", GLNum: "110101000", DrCrFlag: Debit,
		TranDate: mustDate(t, "2024-01-15"), ValueDate: mustDate(t, "2024-01-15"),
		Amount: NewMoney("50.00"), Source: SourcePosting,
	}))

	_, err := tl.EOD.RunJob(JobAccountBalanceUpdate, "eodop")
	require.NoError(t, err)
	_, err = tl.EOD.RunJob(JobInterestAccrualTrans, "eodop")
	require.NoError(t, err)
	_, err = tl.EOD.RunJob(JobInterestAccrualGLMovements, "eodop")
	require.NoError(t, err)
	_, err = tl.EOD.RunJob(JobGLMovementUpdate, "eodop")
	require.NoError(t, err)

	jr5, err := tl.EOD.RunJob(JobGLBalanceUpdate, "eodop")
	require.NoError(t, err, "Job 5 does not itself enforce DR=CR")
	assert.Equal(t, EODSuccess, jr5.Status)

	_, err = tl.EOD.RunJob(JobInterestAccrualAcctBalance, "eodop")
	require.NoError(t, err)

	jr7, err := tl.EOD.RunJob(JobFinancialReports, "eodop")
	require.Error(t, err)
	assert.Equal(t, EODFailed, jr7.Status)
	le, ok := AsLedgerError(err)
	require.True(t, ok)
	assert.Equal(t, CodeTrialBalanceImbalanced, le.Code)

	_, err = tl.EOD.RunJob(JobSystemDateIncrement, "eodop")
	require.Error(t, err, "Job 8 is gated behind Job 7's Success")
	le8, ok := AsLedgerError(err)
	require.True(t, ok)
	assert.Equal(t, CodePreviousJobNotDone, le8.Code)

	date, err := tl.Clock.Now()
	require.NoError(t, err)
	assert.True(t, date.Equal(mustDate(t, "2024-01-15")), "System_Date must not advance on a failed run")
}

// TestEODOrderingGateRejectsOutOfOrderJob.
func TestEODOrderingGateRejectsOutOfOrderJob(t *testing.T) {
	tl := newTestLedger(t)
	tl.Clock.Set(mustDate(t, "2024-01-15"), "setup")

	_, err := tl.EOD.RunJob(JobGLMovementUpdate, "eodop")
	require.Error(t, err)
	le, ok := AsLedgerError(err)
	require.True(t, ok)
	assert.Equal(t, CodePreviousJobNotDone, le.Code)
}

// TestEODAlreadyExecutedIsANoOp: a second invocation of a job that
// already logged Success for the same System_Date reports
// AlreadyExecuted rather than redoing the work.
func TestEODAlreadyExecutedIsANoOp(t *testing.T) {
	tl := newTestLedger(t)
	tl.Clock.Set(mustDate(t, "2024-01-15"), "setup")

	jr1, err := tl.EOD.RunJob(JobAccountBalanceUpdate, "eodop")
	require.NoError(t, err)
	assert.Equal(t, EODSuccess, jr1.Status)

	jr2, err := tl.EOD.RunJob(JobAccountBalanceUpdate, "eodop")
	require.Error(t, err)
	assert.Equal(t, EODSuccess, jr2.Status, "reports the prior success rather than a failure")
	le, ok := AsLedgerError(err)
	require.True(t, ok)
	assert.Equal(t, CodeAlreadyExecuted, le.Code)
}

// TestJob8PersistsSystemDateAcrossRestart: Job 8 must write System_Date
// to the Parameter Table, not just the in-process clock, since §3
// calls System_Date "the single source of truth" and a restart has to
// recover it from storage the way engine.go's NewLedger does.
func TestJob8PersistsSystemDateAcrossRestart(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "restart.db")
	storage, err := NewStorage(dbPath)
	require.NoError(t, err)

	clock := NewSystemClock()
	clock.Set(mustDate(t, "2024-01-15"), "setup")
	registry := NewAccountRegistry(storage)
	balances := NewBalanceStore(storage, clock)
	coa := NewChartOfAccounts()
	md := NewMasterData()
	accrual := NewInterestAccrual(storage, clock, registry, balances, md)
	reports := NewFinancialReports(storage, coa, registry, md, filepath.Join(t.TempDir(), "reports"))
	events := NewEventStore(storage)
	eod := NewEODPipeline(storage, clock, registry, balances, coa, md, accrual, reports, events, nil)

	// The event log is keyed by wall-clock append time, so the lookup
	// below brackets the run with wall-clock instants.
	before := time.Now()
	for _, job := range eodJobOrder {
		_, err := eod.RunJob(job, "eodop")
		require.NoError(t, err, "job %q", job)
	}

	persisted, found, err := storage.GetParameter("System_Date")
	require.NoError(t, err)
	require.True(t, found, "Job 8 must persist System_Date to the Parameter Table")
	assert.Equal(t, "20240116", persisted)

	events2, err := storage.EventsInRange(before, time.Now())
	require.NoError(t, err)
	found2 := false
	for _, ev := range events2 {
		if ev.EventType == EventSetSystemDate {
			found2 = true
		}
	}
	assert.True(t, found2, "Job 8 appends a SET_SYSTEM_DATE journal event")

	require.NoError(t, storage.Close())

	reopened, err := NewStorage(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	restartClock := NewSystemClock()
	date, found, err := reopened.GetParameter("System_Date")
	require.NoError(t, err)
	require.True(t, found)
	parsed, err := parseDateKey(date)
	require.NoError(t, err)
	restartClock.Set(parsed, "startup")

	now, err := restartClock.Now()
	require.NoError(t, err)
	assert.True(t, now.Equal(mustDate(t, "2024-01-16")), "System_Date survives a restart")
}

// TestEODJob5OnEmptyDayProcessesZeroRows is the boundary behavior: an
// empty day (no GL movements at all) lets Job 5 complete with zero
// rows processed rather than raising an InvariantViolation.
func TestEODJob5OnEmptyDayProcessesZeroRows(t *testing.T) {
	tl := newTestLedger(t)
	tl.Clock.Set(mustDate(t, "2024-01-15"), "setup")

	jr, err := tl.EOD.RunJob(JobAccountBalanceUpdate, "eodop")
	require.NoError(t, err)
	assert.Equal(t, 0, jr.RecordsProcessed)

	_, err = tl.EOD.RunJob(JobInterestAccrualTrans, "eodop")
	require.NoError(t, err)
	_, err = tl.EOD.RunJob(JobInterestAccrualGLMovements, "eodop")
	require.NoError(t, err)
	_, err = tl.EOD.RunJob(JobGLMovementUpdate, "eodop")
	require.NoError(t, err)

	jr5, err := tl.EOD.RunJob(JobGLBalanceUpdate, "eodop")
	require.NoError(t, err)
	assert.Equal(t, 0, jr5.RecordsProcessed)
}
