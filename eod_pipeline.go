package corebank

import (
	"sort"
	"time"

	"go.uber.org/zap"
)

// Job names, used verbatim as the EOD_Log_Table's JobName and as the
// {job} path segment of POST /admin/eod/batch/{job}.
const (
	JobAccountBalanceUpdate = "AccountBalanceUpdate"
	JobInterestAccrualTrans = "InterestAccrualTransactions"
	JobInterestAccrualGLMovements = "InterestAccrualGLMovements"
	JobGLMovementUpdate = "GLMovementUpdate"
	JobGLBalanceUpdate = "GLBalanceUpdate"
	JobInterestAccrualAcctBalance = "InterestAccrualAccountBalance"
	JobFinancialReports = "FinancialReports"
	JobSystemDateIncrement = "SystemDateIncrement"
)

// eodJobOrder is the sequential order table specifies; Job N+1
// may only start once Job N has logged Success for the same
// System_Date.
var eodJobOrder = []string{
	JobAccountBalanceUpdate,
	JobInterestAccrualTrans,
	JobInterestAccrualGLMovements,
	JobGLMovementUpdate,
	JobGLBalanceUpdate,
	JobInterestAccrualAcctBalance,
	JobFinancialReports,
	JobSystemDateIncrement,
}

// EODPipeline is C9: the eight-job batch orchestrator, grounded in the
// teacher's event_store.go "log an event, then apply" idiom,
// generalized per SPEC_FULL C9 into "log a Running row in its own
// unit-of-work, then do the job's work, then log Success/Failed in
// another unit-of-work" so the audit trail survives a rollback of the
// job's own work (EOD Log).
type EODPipeline struct {
	storage *Storage
	clock *SystemClock
	registry *AccountRegistry
	balances *BalanceStore
	coa *ChartOfAccounts
	md *MasterData
	accrual *InterestAccrual
	reports *FinancialReports
	events *EventStore
	log *zap.Logger
}

func NewEODPipeline(
	storage *Storage,
	clock *SystemClock,
	registry *AccountRegistry,
	balances *BalanceStore,
	coa *ChartOfAccounts,
	md *MasterData,
	accrual *InterestAccrual,
	reports *FinancialReports,
	events *EventStore,
	log *zap.Logger,
) *EODPipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &EODPipeline{
		storage: storage,
		clock: clock,
		registry: registry,
		balances: balances,
		coa: coa,
		md: md,
		accrual: accrual,
		reports: reports,
		events: events,
		log: log,
	}
}

// JobResult is what each RunJob call and the admin surface report back
// ("200 + recordsProcessed").
type JobResult struct {
	JobName string
	EODDate time.Time
	RecordsProcessed int
	Status EODLogStatus
	ErrorMessage string
}

// jobIndex returns the 0-based position of jobName in eodJobOrder, or
// -1 if unknown.
func jobIndex(jobName string) int {
	for i, n := range eodJobOrder {
		if n == jobName {
			return i
		}
	}
	return -1
}

// checkPriorJobsSucceeded enforces "Job N+1 may start only after
// Job N logged Success on the same System_Date" ordering gate.
func (p *EODPipeline) checkPriorJobsSucceeded(eodDate time.Time, idx int) error {
	if idx <= 0 {
		return nil
	}
	prior := eodJobOrder[idx-1]
	row, found, err := p.storage.LatestEODLog(eodDate, prior)
	if err != nil {
		return IOErrorf(CodeReportWrite, err, "reading EOD log for %q", prior)
	}
	if !found || row.Status != EODSuccess {
		return Conflictf(CodePreviousJobNotDone, "job %q has not logged Success for %s", prior, dateKey(eodDate))
	}
	return nil
}

// RunJob executes a single named job, enforcing the ordering gate and
// the AlreadyExecuted no-op. Each job writes its start row and
// its completion row in separately committed units, matching the
// per-job durability the design treats as the recovery boundary.
func (p *EODPipeline) RunJob(jobName, userID string) (JobResult, error) {
	idx := jobIndex(jobName)
	if idx < 0 {
		return JobResult{}, NotFoundf(CodeUnknownJob, "unknown EOD job %q", jobName)
	}
	eodDate, err := p.clock.Now()
	if err != nil {
		return JobResult{}, err
	}

	if latest, found, err := p.storage.LatestEODLog(eodDate, jobName); err != nil {
		return JobResult{}, IOErrorf(CodeReportWrite, err, "reading EOD log for %q", jobName)
	} else if found && latest.Status == EODSuccess {
		return JobResult{JobName: jobName, EODDate: eodDate, Status: EODSuccess, RecordsProcessed: latest.RecordsProcessed},
			Conflictf(CodeAlreadyExecuted, "job %q already succeeded for %s", jobName, dateKey(eodDate))
	}

	if err := p.checkPriorJobsSucceeded(eodDate, idx); err != nil {
		return JobResult{}, err
	}

	start := time.Now()
	if err := p.storage.PutEODLog(EODLogRow{
		EODDate: eodDate, JobName: jobName, StartTimestamp: start, Status: EODRunning,
	}); err != nil {
		return JobResult{}, IOErrorf(CodeReportWrite, err, "writing EOD Running row for %q", jobName)
	}
	p.log.Info("eod job starting", zap.String("job", jobName), zap.String("eodDate", dateKey(eodDate)))

	records, runErr := p.runJobBody(jobName, eodDate, userID)

	end := time.Now()
	completion := EODLogRow{
		EODDate: eodDate, JobName: jobName, StartTimestamp: start, EndTimestamp: end,
		RecordsProcessed: records,
	}
	if runErr != nil {
		completion.Status = EODFailed
		completion.ErrorMessage = runErr.Error()
		if le, ok := AsLedgerError(runErr); ok {
			completion.FailedAtStep = le.Code
		}
		p.log.Error("eod job failed", zap.String("job", jobName), zap.Error(runErr))
	} else {
		completion.Status = EODSuccess
		p.log.Info("eod job succeeded", zap.String("job", jobName), zap.Int("recordsProcessed", records))
	}
	if err := p.storage.PutEODLog(completion); err != nil {
		return JobResult{}, IOErrorf(CodeReportWrite, err, "writing EOD completion row for %q", jobName)
	}

	if _, err := p.events.Append(EventRunEODJob, EODJobRunPayload{
		JobName: jobName, Status: string(completion.Status), RecordsProcessed: records,
	}, eodDate, userID); err != nil {
		return JobResult{}, err
	}

	result := JobResult{JobName: jobName, EODDate: eodDate, RecordsProcessed: records, Status: completion.Status, ErrorMessage: completion.ErrorMessage}
	return result, runErr
}

func (p *EODPipeline) runJobBody(jobName string, eodDate time.Time, userID string) (int, error) {
	switch jobName {
	case JobAccountBalanceUpdate:
		return p.jobAccountBalanceUpdate(eodDate)
	case JobInterestAccrualTrans:
		return p.jobInterestAccrualTransactions(eodDate)
	case JobInterestAccrualGLMovements:
		return p.jobInterestAccrualGLMovements(eodDate)
	case JobGLMovementUpdate:
		return p.jobGLMovementUpdate(eodDate)
	case JobGLBalanceUpdate:
		return p.jobGLBalanceUpdate(eodDate)
	case JobInterestAccrualAcctBalance:
		return p.jobInterestAccrualAcctBalance(eodDate)
	case JobFinancialReports:
		return p.jobFinancialReports(eodDate)
	case JobSystemDateIncrement:
		return p.jobSystemDateIncrement(eodDate, userID)
	default:
		return 0, NotFoundf(CodeUnknownJob, "unknown EOD job %q", jobName)
	}
}

// jobAccountBalanceUpdate is Job 1: overwrites today's Account-Balance
// row for every Active account from the previous day's closing balance
// plus today's posted/verified legs (table row 1, "Job 1...
// overwrite current-day row").
func (p *EODPipeline) jobAccountBalanceUpdate(eodDate time.Time) (int, error) {
	processed := 0
	for _, acct := range p.registry.AllOpen() {
		if acct.Status != AccountActive {
			continue
		}
		opening, err := p.balances.LatestByAccount(acct.AccountNo, eodDate.AddDate(0, 0, -1))
		if err != nil {
			return processed, err
		}
		legs, err := p.storage.LegsByAccountAndDate(acct.AccountNo, eodDate)
		if err != nil {
			return processed, IOErrorf(CodeBalanceRowMissing, err, "reading legs for %q", acct.AccountNo)
		}
		dr, cr := Zero, Zero
		for _, l := range legs {
			if l.TranStatus != LegPosted && l.TranStatus != LegVerified {
				continue
			}
			if l.DrCrFlag == Debit {
				dr = dr.Add(l.LcyAmount)
			} else {
				cr = cr.Add(l.LcyAmount)
			}
		}
		closing := closingBalFromSums(opening.ClosingBal, cr, dr)
		row := BalanceRow{
			Key: acct.AccountNo,
			TranDate: eodDate,
			OpeningBal: opening.ClosingBal,
			DrSummation: dr,
			CrSummation: cr,
			ClosingBal: closing,
			CurrentBalance: closing,
			AvailableBalance: closing,
			LastUpdated: eodDate,
		}
		if err := p.storage.PutBalanceRow(BalanceKindAccount, row); err != nil {
			return processed, IOErrorf(CodeReportWrite, err, "writing account balance row for %q", acct.AccountNo)
		}
		processed++
	}
	return processed, nil
}

// jobInterestAccrualTransactions is Job 2: daily interest run.
func (p *EODPipeline) jobInterestAccrualTransactions(eodDate time.Time) (int, error) {
	result, err := p.accrual.Run()
	if err != nil {
		return 0, err
	}
	for _, e := range result.Errors {
		p.log.Warn("interest accrual error", zap.String("account", e.AccountNo), zap.Error(e.Err))
	}
	return result.Accrued, nil
}

// jobInterestAccrualGLMovements is Job 3: one GL-movement-accrual row
// per Pending accrual leg, then flips each leg to Processed. Rows are
// keyed by accrTranId, so a rerun simply re-derives the same rows for
// any leg still Pending.
func (p *EODPipeline) jobInterestAccrualGLMovements(eodDate time.Time) (int, error) {
	pending, err := p.storage.AccrualLegsByStatus(AccrualPending, eodDate)
	if err != nil {
		return 0, IOErrorf(CodeReportWrite, err, "reading pending accrual legs")
	}
	processed := 0
	for _, leg := range pending {
		m := GLMovement{
			LegTranID: leg.AccrTranID,
			GLNum: leg.GLNum,
			DrCrFlag: leg.DrCrFlag,
			TranDate: eodDate,
			ValueDate: eodDate,
			Amount: leg.Amount,
			Source: SourceAccrual,
		}
		if err := p.storage.PutGLMovementAccrual(m, leg.AccrTranID); err != nil {
			return processed, IOErrorf(CodeReportWrite, err, "writing GL movement accrual for %q", leg.AccrTranID)
		}
		leg.Status = AccrualProcessed
		if err := p.storage.PutAccrualLeg(leg); err != nil {
			return processed, IOErrorf(CodeReportWrite, err, "marking accrual leg %q processed", leg.AccrTranID)
		}
		processed++
	}
	return processed, nil
}

// jobGLMovementUpdate is Job 4: consolidates the day's accrual
// GL-movements into the unified GL-movement stream that Job 5 reads,
// deleting any previously-consolidated rows first so a rerun neither
// duplicates nor stacks amounts ("Jobs 2 and 4 require a
// delete-before-reinsert on re-run").
func (p *EODPipeline) jobGLMovementUpdate(eodDate time.Time) (int, error) {
	if err := p.storage.DeleteGLMovementsBySource(eodDate, SourceAccrual); err != nil {
		return 0, IOErrorf(CodeReportWrite, err, "clearing prior accrual GL movements")
	}
	accrualMoves, err := p.storage.GLMovementAccrualsForDate(eodDate)
	if err != nil {
		return 0, IOErrorf(CodeReportWrite, err, "reading accrual GL movements")
	}

	running := make(map[string]Money)
	processed := 0
	for _, m := range accrualMoves {
		base, ok := running[m.GLNum]
		if !ok {
			row, err := p.balances.LatestByGL(m.GLNum, eodDate)
			if err != nil {
				return processed, err
			}
			base = row.ClosingBal
		}
		if m.DrCrFlag == Debit {
			base = base.Sub(m.Amount)
		} else {
			base = base.Add(m.Amount)
		}
		running[m.GLNum] = base
		m.Source = SourceAccrual
		m.BalanceAfter = base
		if err := p.storage.PutGLMovement(m); err != nil {
			return processed, IOErrorf(CodeReportWrite, err, "consolidating GL movement for %q", m.LegTranID)
		}
		processed++
	}
	return processed, nil
}

// jobGLBalanceUpdate is Job 5: derives one row per distinct glNum seen
// in the day's unified GL-movement stream (postings + accrual) from
// scratch, overwriting the current-day GL-Balance row ("Job 5...
// overwrite current-day row"). Does not enforce the DR=CR cross-check
// itself; Job 7 re-checks that invariant, and E6 expects Job 5 to
// complete regardless.
func (p *EODPipeline) jobGLBalanceUpdate(eodDate time.Time) (int, error) {
	movements, err := p.storage.GLMovementsForDate(eodDate)
	if err != nil {
		return 0, IOErrorf(CodeReportWrite, err, "reading GL movements for %s", dateKey(eodDate))
	}
	byGL := make(map[string]struct{ dr, cr Money })
	order := make([]string, 0)
	for _, m := range movements {
		acc, ok := byGL[m.GLNum]
		if !ok {
			order = append(order, m.GLNum)
		}
		if m.DrCrFlag == Debit {
			acc.dr = acc.dr.Add(m.Amount)
		} else {
			acc.cr = acc.cr.Add(m.Amount)
		}
		byGL[m.GLNum] = acc
	}
	sort.Strings(order)
	for _, gl := range order {
		sums := byGL[gl]
		opening, err := p.balances.LatestByGL(gl, eodDate.AddDate(0, 0, -1))
		if err != nil {
			return 0, err
		}
		closing := closingBalFromSums(opening.ClosingBal, sums.cr, sums.dr)
		row := BalanceRow{
			Key: gl,
			TranDate: eodDate,
			OpeningBal: opening.ClosingBal,
			DrSummation: sums.dr,
			CrSummation: sums.cr,
			ClosingBal: closing,
			CurrentBalance: closing,
			AvailableBalance: closing,
			LastUpdated: eodDate,
		}
		if err := p.storage.PutBalanceRow(BalanceKindGL, row); err != nil {
			return 0, IOErrorf(CodeReportWrite, err, "writing GL balance row for %q", gl)
		}
	}
	return len(order), nil
}

// jobInterestAccrualAcctBalance is Job 6: one Acct_Bal_Accrual row per
// account that accrued interest today, tracking accrued interest
// separately from the principal Acct_Bal row Job 1 maintains.
func (p *EODPipeline) jobInterestAccrualAcctBalance(eodDate time.Time) (int, error) {
	processed, err := p.storage.AccrualLegsByStatus(AccrualProcessed, eodDate)
	if err != nil {
		return 0, IOErrorf(CodeReportWrite, err, "reading processed accrual legs")
	}
	byAccount := make(map[string]struct{ dr, cr Money })
	order := make([]string, 0)
	for _, leg := range processed {
		acc, ok := byAccount[leg.AccountNo]
		if !ok {
			order = append(order, leg.AccountNo)
		}
		if leg.DrCrFlag == Debit {
			acc.dr = acc.dr.Add(leg.Amount)
		} else {
			acc.cr = acc.cr.Add(leg.Amount)
		}
		byAccount[leg.AccountNo] = acc
	}
	sort.Strings(order)
	for _, accountNo := range order {
		sums := byAccount[accountNo]
		opening, _, err := p.storage.LatestAcctBalAccrualOnOrBefore(accountNo, eodDate.AddDate(0, 0, -1))
		if err != nil {
			return 0, IOErrorf(CodeReportWrite, err, "reading prior accrual balance for %q", accountNo)
		}
		closing := closingBalFromSums(opening.ClosingBal, sums.cr, sums.dr)
		row := BalanceRow{
			Key: accountNo,
			TranDate: eodDate,
			OpeningBal: opening.ClosingBal,
			DrSummation: sums.dr,
			CrSummation: sums.cr,
			ClosingBal: closing,
			CurrentBalance: closing,
			LastUpdated: eodDate,
		}
		if err := p.storage.PutAcctBalAccrual(row); err != nil {
			return 0, IOErrorf(CodeReportWrite, err, "writing accrual balance row for %q", accountNo)
		}
	}
	return len(order), nil
}

// jobFinancialReports is Job 7: Trial Balance CSV + Balance Sheet XLSX,
// re-checking the DR=CR invariant and failing with
// TrialBalanceImbalanced if it does not hold (E6).
func (p *EODPipeline) jobFinancialReports(eodDate time.Time) (int, error) {
	n, err := p.reports.Generate(eodDate)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// jobSystemDateIncrement is Job 8: the only operation allowed to
// advance System_Date. It is also the only job that must persist the
// Parameter Table row System_Date itself, since SystemClock.Advance
// only mutates the in-process clock.
func (p *EODPipeline) jobSystemDateIncrement(eodDate time.Time, userID string) (int, error) {
	newDate, err := p.clock.Advance("eod")
	if err != nil {
		return 0, err
	}
	if err := p.storage.PutParameter("System_Date", dateKey(newDate)); err != nil {
		return 0, IOErrorf(CodeReportWrite, err, "writing System_Date")
	}
	if err := p.storage.PutParameter("Last_EOD_Date", dateKey(eodDate)); err != nil {
		return 0, IOErrorf(CodeReportWrite, err, "writing Last_EOD_Date")
	}
	if err := p.storage.PutParameter("Last_EOD_Timestamp", time.Now().Format(time.RFC3339)); err != nil {
		return 0, IOErrorf(CodeReportWrite, err, "writing Last_EOD_Timestamp")
	}
	if err := p.storage.PutParameter("Last_EOD_User", "eod"); err != nil {
		return 0, IOErrorf(CodeReportWrite, err, "writing Last_EOD_User")
	}
	if _, err := p.events.Append(EventSetSystemDate, SystemDateChangedPayload{NewDate: newDate, UserID: userID}, newDate, userID); err != nil {
		return 0, err
	}
	return 1, nil
}

// RunResult is the pipeline-wide outcome of RunAll ("200 +
// counters").
type RunResult struct {
	EODDate time.Time
	Jobs []JobResult
	FailedAtJob string
}

// RunAll executes every job in order, stopping at the first failure.
// Earlier jobs' committed work is never undone ("a later-job failure
// does not undo earlier-job ledger changes").
func (p *EODPipeline) RunAll(userID string) (RunResult, error) {
	eodDate, err := p.clock.Now()
	if err != nil {
		return RunResult{}, err
	}
	result := RunResult{EODDate: eodDate}
	for _, job := range eodJobOrder {
		jr, err := p.RunJob(job, userID)
		if err != nil {
			if le, ok := AsLedgerError(err); ok && le.Code == CodeAlreadyExecuted {
				result.Jobs = append(result.Jobs, jr)
				continue
			}
			result.Jobs = append(result.Jobs, jr)
			result.FailedAtJob = job
			return result, err
		}
		result.Jobs = append(result.Jobs, jr)
	}
	return result, nil
}

// Status is the GET /admin/eod/status payload.
type Status struct {
	SystemDate time.Time
	LastEODDate string
	LastEODUser string
	LastEODStamp string
}

func (p *EODPipeline) CurrentStatus() (Status, error) {
	systemDate, err := p.clock.Now()
	if err != nil {
		return Status{}, err
	}
	lastDate, _, _ := p.storage.GetParameter("Last_EOD_Date")
	lastUser, _, _ := p.storage.GetParameter("Last_EOD_User")
	lastStamp, _, _ := p.storage.GetParameter("Last_EOD_Timestamp")
	return Status{SystemDate: systemDate, LastEODDate: lastDate, LastEODUser: lastUser, LastEODStamp: lastStamp}, nil
}
