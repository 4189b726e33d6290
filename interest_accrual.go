package corebank

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const daysInYearDivisor = "36500"

// AccrualAccountError captures a single account's accrual failure so
// the job can continue processing the rest ("the job continues
// processing remaining accounts and reports aggregate counts and
// per-account errors").
type AccrualAccountError struct {
	AccountNo string
	Err error
}

// AccrualResult is the aggregate outcome of one day's interest run.
type AccrualResult struct {
	Accrued int
	Skipped int
	Errors []AccrualAccountError
}

// InterestAccrual is C8 / EOD Job 2's logic, grounded in
// `accrual_service.go`'s RecognitionSchedule/generateRecognitionEntries
// pro-rating idiom, reused here to round the daily accrual amount to
// scale 2.
type InterestAccrual struct {
	storage *Storage
	clock *SystemClock
	registry *AccountRegistry
	balances *BalanceStore
	md *MasterData
}

func NewInterestAccrual(storage *Storage, clock *SystemClock, registry *AccountRegistry, balances *BalanceStore, md *MasterData) *InterestAccrual {
	return &InterestAccrual{storage: storage, clock: clock, registry: registry, balances: balances, md: md}
}

// isDealAccount classifies an account per step 1.
func isDealAccount(glNum string) bool {
	return strings.HasPrefix(glNum, "1102") || strings.HasPrefix(glNum, "2102")
}

// effectiveRate implements step 2.
func (a *InterestAccrual) effectiveRate(sp SubProduct, glNum string, systemDate time.Time) (Money, error) {
	isLiability := strings.HasPrefix(glNum, "1")
	if isLiability && isDealAccount(glNum) {
		return sp.FixedRate, nil
	}
	looked, err := a.md.EffectiveRate(sp.InterestCode, systemDate)
	if err != nil {
		return Zero, err
	}
	return looked.Add(sp.InterestIncrement), nil
}

// accrualGLs implements step 6: choosing Dr/Cr GLs per liability
// vs asset, with fallbacks.
func accrualGLs(sp SubProduct, isLiability bool) (drGL, crGL string) {
	if isLiability {
		drGL = sp.ExpenditureGL
		if drGL == "" {
			drGL = sp.PayableGL
		}
		crGL = sp.PayableGL
		if crGL == "" {
			crGL = sp.ExpenditureGL
		}
		return drGL, crGL
	}
	drGL = sp.ReceivableGL
	if drGL == "" {
		drGL = sp.IncomeGL
	}
	crGL = sp.IncomeGL
	if crGL == "" {
		crGL = sp.ReceivableGL
	}
	return drGL, crGL
}

// Run processes every Active customer account whose GL begins with "1"
// or "2".
func (a *InterestAccrual) Run() (AccrualResult, error) {
	systemDate, err := a.clock.Now()
	if err != nil {
		return AccrualResult{}, err
	}
	rateDivisor, _ := decimal.NewFromString(daysInYearDivisor)

	var result AccrualResult
	for _, acct := range a.registry.AllOpen() {
		if !acct.IsCustomer || acct.Status != AccountActive {
			continue
		}
		if !strings.HasPrefix(acct.GLNum, "1") && !strings.HasPrefix(acct.GLNum, "2") {
			continue
		}

		row, found, err := a.storage.GetBalanceRow(BalanceKindAccount, acct.AccountNo, systemDate)
		if !found || err != nil {
			result.Errors = append(result.Errors, AccrualAccountError{
				AccountNo: acct.AccountNo,
				Err: NotFoundf(CodeBalanceRowMissing, "no balance row for %q on %s", acct.AccountNo, dateKey(systemDate)),
			})
			continue
		}

		sp, err := a.md.GetSubProduct(acct.SubProduct)
		if err != nil {
			result.Errors = append(result.Errors, AccrualAccountError{AccountNo: acct.AccountNo, Err: err})
			continue
		}

		isLiability := strings.HasPrefix(acct.GLNum, "1")
		rate, err := a.effectiveRate(sp, acct.GLNum, systemDate)
		if err != nil {
			result.Errors = append(result.Errors, AccrualAccountError{AccountNo: acct.AccountNo, Err: err})
			continue
		}

		bal := row.ClosingBal
		if rate.IsZero() || bal.IsZero() {
			result.Skipped++
			continue
		}

		accrual := NewMoneyFromDecimal(bal.Decimal().Mul(rate.Decimal()).Div(rateDivisor))

		drGL, crGL := accrualGLs(sp, isLiability)
		if drGL == "" || crGL == "" {
			result.Errors = append(result.Errors, AccrualAccountError{
				AccountNo: acct.AccountNo,
				Err: Configurationf(CodeGLNotConfigured, "sub-product %q has no accrual GL mapping", acct.SubProduct),
			})
			continue
		}

		seq, err := a.storage.NextAccrualSeq(systemDate)
		if err != nil {
			result.Errors = append(result.Errors, AccrualAccountError{AccountNo: acct.AccountNo, Err: err})
			continue
		}
		drID, err := accrTranID(systemDate, seq, 1)
		if err != nil {
			result.Errors = append(result.Errors, AccrualAccountError{AccountNo: acct.AccountNo, Err: err})
			continue
		}
		crID, err := accrTranID(systemDate, seq, 2)
		if err != nil {
			result.Errors = append(result.Errors, AccrualAccountError{AccountNo: acct.AccountNo, Err: err})
			continue
		}

		drLeg := AccrualLeg{AccrTranID: drID, AccountNo: acct.AccountNo, DrCrFlag: Debit, Amount: accrual, GLNum: drGL, AccrualDate: systemDate, Status: AccrualPending}
		crLeg := AccrualLeg{AccrTranID: crID, AccountNo: acct.AccountNo, DrCrFlag: Credit, Amount: accrual, GLNum: crGL, AccrualDate: systemDate, Status: AccrualPending}
		if err := a.storage.PutAccrualLeg(drLeg); err != nil {
			result.Errors = append(result.Errors, AccrualAccountError{AccountNo: acct.AccountNo, Err: IOErrorf(CodeReportWrite, err, "writing accrual leg %q", drID)})
			continue
		}
		if err := a.storage.PutAccrualLeg(crLeg); err != nil {
			result.Errors = append(result.Errors, AccrualAccountError{AccountNo: acct.AccountNo, Err: IOErrorf(CodeReportWrite, err, "writing accrual leg %q", crID)})
			continue
		}
		result.Accrued++
	}
	return result, nil
}
