package corebank

import "time"

// DrCrFlag is the leg direction ("drCrFlag ∈ {D, C}").
type DrCrFlag string

const (
	Debit DrCrFlag = "D"
	Credit DrCrFlag = "C"
)

func (f DrCrFlag) Opposite() DrCrFlag {
	if f == Debit {
		return Credit
	}
	return Debit
}

// LegStatus is the Tran_Status state machine: Entry -> Posted
// -> Verified, with Future standing in for value-dated legs BOD has
// not yet promoted.
type LegStatus string

const (
	LegEntry LegStatus = "Entry"
	LegPosted LegStatus = "Posted"
	LegVerified LegStatus = "Verified"
	LegFuture LegStatus = "Future"
)

// Leg is one line of a multi-leg transaction ("Transaction-Leg").
// Legs sharing the tranId prefix before the final "-lineNo" form one
// transaction; the set is immutable except for TranStatus transitions
// (invariant).
type Leg struct {
	TranID string // T<yyyymmdd><6-seq><3-rand>-<lineNo>
	LineNo int
	TranDate time.Time
	ValueDate time.Time
	AccountNo string
	DrCrFlag DrCrFlag
	Currency string
	FcyAmount Money
	ExchangeRate Money
	LcyAmount Money // authoritative
	Narration string
	TranStatus LegStatus
	PointingID string // set on a reversal leg, linking to the original tranId
	CreatedAt time.Time

	// BalanceAfterPosting is the owning account's CurrentBalance
	// immediately after this leg posted, captured at Post time so
	// Verify (C6) can write it into the history row without
	// recomputing a balance that may have moved since.
	BalanceAfterPosting Money
}

// GLMovementSource distinguishes a movement born from a transaction
// posting from one born of EOD Job 4 consolidating an interest
// accrual into the unified GL-movement stream (Job 4). The
// distinction exists so Job 4's rerun can delete-and-reinsert only the
// accrual-sourced rows it owns, per idempotence note, without
// touching movements a Post call already committed.
type GLMovementSource string

const (
	SourcePosting GLMovementSource = "Posting"
	SourceAccrual GLMovementSource = "Accrual"
)

// GLMovement is one append-only row per posted leg ("GL-Movement").
type GLMovement struct {
	LegTranID string
	GLNum string
	DrCrFlag DrCrFlag
	TranDate time.Time
	ValueDate time.Time
	Amount Money
	BalanceAfter Money
	Source GLMovementSource
}

// BalanceRow is the shared shape behind both Account-Balance and
// GL-Balance rows ("Analogous operations exist for GL-Balance
// rows"): Key holds an accountNo or a glNum depending on which bucket
// the row lives in.
type BalanceRow struct {
	Key string
	TranDate time.Time
	OpeningBal Money
	DrSummation Money
	CrSummation Money
	ClosingBal Money
	CurrentBalance Money
	AvailableBalance Money
	LastUpdated time.Time
}

// closingBalFromSums recomputes ClosingBal per invariant
// (liability orientation: opening + credit - debit).
func closingBalFromSums(opening, cr, dr Money) Money {
	return opening.Add(cr).Sub(dr)
}

// AccrualLegStatus tracks an accrual leg from Job 2 (Pending) through
// Job 3 (Processed) per step 7 / Job 3.
type AccrualLegStatus string

const (
	AccrualPending AccrualLegStatus = "Pending"
	AccrualProcessed AccrualLegStatus = "Processed"
)

// AccrualLeg is one row of the Interest-Accrual Leg table, keyed
// by the 20-character accrTranId.
type AccrualLeg struct {
	AccrTranID string
	AccountNo string
	DrCrFlag DrCrFlag
	Amount Money
	GLNum string
	AccrualDate time.Time
	Status AccrualLegStatus
}

// EODLogStatus is one of Running/Success/Failed ("EOD Log").
type EODLogStatus string

const (
	EODRunning EODLogStatus = "Running"
	EODSuccess EODLogStatus = "Success"
	EODFailed EODLogStatus = "Failed"
)

// EODLogRow is one audit row for one job execution attempt (:
// "Each job writes its start row in a separately committed unit and
// its completion row in another").
type EODLogRow struct {
	EODDate time.Time
	JobName string
	StartTimestamp time.Time
	EndTimestamp time.Time
	RecordsProcessed int
	Status EODLogStatus
	ErrorMessage string
	FailedAtStep string
}

// TxnHistRow is C6's immutable per-leg history row, written at Verify,
// carrying the balance-after-transaction for later statement rendering
// (C6, Txn_Hist_Acct in).
type TxnHistRow struct {
	TranID string
	AccountNo string
	DrCrFlag DrCrFlag
	Amount Money
	TranDate time.Time
	ValueDate time.Time
	BalanceAfter Money
	Narration string
	VerifiedAt time.Time
}

// JournalEvent is the supplemented audit-trail event log (SPEC_FULL
// ), grounded in the teacher's event_store.go: every mutating
// operation appends one of these after applying its effect.
type JournalEvent struct {
	ID string
	EventType string
	Payload []byte // JSON-encoded, type depends on EventType
	ValidTime time.Time
	TransactionTime time.Time
	UserID string
}
