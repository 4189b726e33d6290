package corebank

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// Storage buckets. One bucket per "table" of persistent-state
// list, grounded in the teacher's storage.go layout, but JSON-encoded
// rather than protobuf-encoded (see DESIGN.md: the teacher's protobuf
// path depends on a generated package absent from the retrieval pack,
// so we generalize the teacher's own JSON event-payload pattern to the
// whole storage layer instead of fabricating the missing codegen).
var (
	bucketParameters = []byte("parameters")
	bucketAccounts = []byte("accounts")
	bucketAccountSeq = []byte("account_seq")
	bucketGLSetup = []byte("gl_setup")
	bucketAccountBal = []byte("account_balance")
	bucketAcctBalAccr = []byte("account_balance_accrual")
	bucketGLBal = []byte("gl_balance")
	bucketLegs = []byte("legs")
	bucketLegsByAcctDt = []byte("legs_idx_account_date")
	bucketGLMovements = []byte("gl_movements")
	bucketGLMoveSeq = []byte("gl_movement_seq")
	bucketGLMoveAccrual = []byte("gl_movements_accrual")
	bucketEODLog = []byte("eod_log")
	bucketTxnHist = []byte("txn_hist")
	bucketAccrualLegs = []byte("accrual_legs")
	bucketAccrualSeq = []byte("accrual_seq")
	bucketTranSeq = []byte("tran_seq")
	bucketEvents = []byte("events")
)

var allBuckets = [][]byte{
	bucketParameters, bucketAccounts, bucketAccountSeq, bucketGLSetup,
	bucketAccountBal, bucketAcctBalAccr, bucketGLBal, bucketLegs, bucketLegsByAcctDt,
	bucketGLMovements, bucketGLMoveSeq, bucketGLMoveAccrual, bucketEODLog,
	bucketTxnHist, bucketAccrualLegs, bucketAccrualSeq, bucketTranSeq,
	bucketEvents,
}

// Storage is the bbolt-backed persistence layer underlying every
// component from C3 onward: one `*bbolt.DB`, `Update`/`View`
// transactions as the unit-of-work boundary requires.
type Storage struct {
	db *bbolt.DB
}

func NewStorage(dbPath string) (*Storage, error) {
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: 10 * time.Second})
	if err != nil {
		return nil, IOErrorf(CodeReportWrite, err, "failed to open ledger database at %s", dbPath)
	}
	s := &Storage{db: db}
	if err := s.initBuckets(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Storage) Close() error { return s.db.Close() }

func (s *Storage) initBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, b := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
}

func putJSON(b *bbolt.Bucket, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put([]byte(key), data)
}

func getJSON(b *bbolt.Bucket, key string, dest interface{}) (bool, error) {
	data := b.Get([]byte(key))
	if data == nil {
		return false, nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

const dateKeyLayout = "20060102"

func dateKey(t time.Time) string { return t.Format(dateKeyLayout) }

func parseDateKey(s string) (time.Time, error) { return time.Parse(dateKeyLayout, s) }

// --- Parameters (System_Date, Last_EOD_*) ---------------------------------

func (s *Storage) GetParameter(name string) (string, bool, error) {
	var val string
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketParameters).Get([]byte(name))
		if data != nil {
			val = string(data)
			found = true
		}
		return nil
	})
	return val, found, err
}

func (s *Storage) PutParameter(name, value string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketParameters).Put([]byte(name), []byte(value))
	})
}

// --- Accounts (C3) ---------------------------------------------------------

func (s *Storage) GetAccount(accountNo string) (Account, bool, error) {
	var a Account
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		ok, err := getJSON(tx.Bucket(bucketAccounts), accountNo, &a)
		found = ok
		return err
	})
	return a, found, err
}

func (s *Storage) PutAccount(a Account) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return putJSON(tx.Bucket(bucketAccounts), a.AccountNo, &a)
	})
}

func (s *Storage) ListAccounts() ([]Account, error) {
	var out []Account
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketAccounts).ForEach(func(k, v []byte) error {
			var a Account
			if err := json.Unmarshal(v, &a); err != nil {
			return err
			}
			out = append(out, a)
			return nil
		})
	})
	return out, err
}

// NextOfficeAccountSeq increments and returns the next office-account
// sequence for glNum, refusing once the current value is already 99
// (boundary behavior). The bbolt write transaction is the single
// writer for this counter ("AccountSeq rows are single-writer
// per-GL").
func (s *Storage) NextOfficeAccountSeq(glNum string) (int, error) {
	var next int
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketAccountSeq)
		cur := 0
		if data := b.Get([]byte(glNum)); data != nil {
			fmt.Sscanf(string(data), "%d", &cur)
		}
		if cur >= 99 {
			return BusinessRulef(CodeAccountSeqExhausted, "office account sequence for GL %q exhausted at 99", glNum)
		}
		next = cur + 1
		return b.Put([]byte(glNum), []byte(fmt.Sprintf("%d", next)))
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

// --- GL Setup (C2) ----------------------------------------------------------

func (s *Storage) GetGLSetup(glNum string) (GLSetup, bool, error) {
	var g GLSetup
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		ok, err := getJSON(tx.Bucket(bucketGLSetup), glNum, &g)
		found = ok
		return err
	})
	return g, found, err
}

func (s *Storage) PutGLSetup(g GLSetup) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return putJSON(tx.Bucket(bucketGLSetup), g.GLNum, &g)
	})
}

func (s *Storage) ListGLSetup() ([]GLSetup, error) {
	var out []GLSetup
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketGLSetup).ForEach(func(k, v []byte) error {
			var g GLSetup
			if err := json.Unmarshal(v, &g); err != nil {
				return err
			}
			out = append(out, g)
			return nil
		})
	})
	return out, err
}

// --- Balance rows (C4): shared bucket shape for accounts and GLs ----------

// BalanceKind selects which of the two "analogous" balance tables
// an operation addresses.
type BalanceKind int

const (
	BalanceKindAccount BalanceKind = iota
	BalanceKindGL
)

func (s *Storage) balanceBucket(kind BalanceKind) []byte {
	if kind == BalanceKindGL {
		return bucketGLBal
	}
	return bucketAccountBal
}

func balanceRowKey(key string, tranDate time.Time) string {
	return key + "|" + dateKey(tranDate)
}

func (s *Storage) GetBalanceRow(kind BalanceKind, key string, tranDate time.Time) (BalanceRow, bool, error) {
	var row BalanceRow
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		ok, err := getJSON(tx.Bucket(s.balanceBucket(kind)), balanceRowKey(key, tranDate), &row)
		found = ok
		return err
	})
	return row, found, err
}

func (s *Storage) PutBalanceRow(kind BalanceKind, row BalanceRow) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return putJSON(tx.Bucket(s.balanceBucket(kind)), balanceRowKey(row.Key, row.TranDate), &row)
	})
}

// LatestBalanceRowOnOrBefore finds the row for the greatest tranDate <=
// asOf (latestByAccount / 3-tier fallback), by seeking just
// past the target key and stepping backward while the account/GL-key
// prefix still matches.
func (s *Storage) LatestBalanceRowOnOrBefore(kind BalanceKind, key string, asOf time.Time) (BalanceRow, bool, error) {
	var row BalanceRow
	var found bool
	prefix := []byte(key + "|")
	upperBound := []byte(balanceRowKey(key, asOf) + "\xff")
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(s.balanceBucket(kind)).Cursor()
		k, v := c.Seek(upperBound)
		if k == nil {
			k, v = c.Last()
		} else {
			k, v = c.Prev()
		}
		for k != nil && bytes.HasPrefix(k, prefix) {
			if string(k) <= balanceRowKey(key, asOf) {
				if err := json.Unmarshal(v, &row); err != nil {
					return err
				}
				found = true
				return nil
			}
			k, v = c.Prev()
		}
		return nil
	})
	return row, found, err
}

// ListBalanceRows returns every row for tranDate across all keys. No
// EOD job calls it; Jobs 5 and 7 read GL rows one key at a time.
func (s *Storage) ListBalanceRows(kind BalanceKind, tranDate time.Time) ([]BalanceRow, error) {
	var out []BalanceRow
	suffix := "|" + dateKey(tranDate)
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(s.balanceBucket(kind)).ForEach(func(k, v []byte) error {
			if bytes.HasSuffix(k, []byte(suffix)) {
				var row BalanceRow
				if err := json.Unmarshal(v, &row); err != nil {
					return err
				}
				out = append(out, row)
			}
			return nil
		})
	})
	return out, err
}

// --- Legs (C5/C6) -----------------------------------------------------------

func (s *Storage) GetLeg(tranID string) (Leg, bool, error) {
	var l Leg
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		ok, err := getJSON(tx.Bucket(bucketLegs), tranID, &l)
		found = ok
		return err
	})
	return l, found, err
}

// PutLeg writes the leg and (on first write) its account/date index
// entry. The index entry is immutable (accountNo, tranDate and tranID
// never change after Create), so it is only written when absent.
func (s *Storage) PutLeg(l Leg) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := putJSON(tx.Bucket(bucketLegs), l.TranID, &l); err != nil {
			return err
		}
		idxKey := l.AccountNo + "|" + dateKey(l.TranDate) + "|" + l.TranID
		idx := tx.Bucket(bucketLegsByAcctDt)
		if idx.Get([]byte(idxKey)) == nil {
			if err := idx.Put([]byte(idxKey), []byte(l.TranID)); err != nil {
				return err
			}
		}
		return nil
	})
}

// LegsByBase returns every leg sharing tranId base (i.e. one
// transaction's legs), in stable tranID order.
func (s *Storage) LegsByBase(base string) ([]Leg, error) {
	var out []Leg
	prefix := []byte(base + "-")
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketLegs).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var l Leg
			if err := json.Unmarshal(v, &l); err != nil {
				return err
			}
			out = append(out, l)
		}
		return nil
	})
	return out, err
}

// LegsByAccountAndDate returns every leg posted to accountNo on
// tranDate, via the secondary index: the input to today-DR/today-CR
// summation and EOD Job 1.
func (s *Storage) LegsByAccountAndDate(accountNo string, tranDate time.Time) ([]Leg, error) {
	var out []Leg
	prefix := []byte(accountNo + "|" + dateKey(tranDate) + "|")
	err := s.db.View(func(tx *bbolt.Tx) error {
		idx := tx.Bucket(bucketLegsByAcctDt)
		legs := tx.Bucket(bucketLegs)
		c := idx.Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			data := legs.Get(v)
			if data == nil {
				continue
			}
			var l Leg
			if err := json.Unmarshal(data, &l); err != nil {
				return err
			}
			out = append(out, l)
		}
		return nil
	})
	return out, err
}

// LegsByStatus scans every leg with the given status. Grounded in the
// teacher's QueryAPI "load everything, filter in Go" idiom; acceptable
// here because this is the Future-leg scan BOD runs on demand, not a
// hot path.
func (s *Storage) LegsByStatus(status LegStatus) ([]Leg, error) {
	var out []Leg
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketLegs).ForEach(func(k, v []byte) error {
			var l Leg
			if err := json.Unmarshal(v, &l); err != nil {
				return err
			}
			if l.TranStatus == status {
				out = append(out, l)
			}
			return nil
		})
	})
	return out, err
}

// AllLegs supports paged transaction listing (GET /transactions).
func (s *Storage) AllLegs() ([]Leg, error) {
	var out []Leg
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketLegs).ForEach(func(k, v []byte) error {
			var l Leg
			if err := json.Unmarshal(v, &l); err != nil {
				return err
			}
			out = append(out, l)
			return nil
		})
	})
	return out, err
}

// NextTranSeq mints the next per-business-day transaction sequence,
// bounded at 999999 (tranId format).
func (s *Storage) NextTranSeq(tranDate time.Time) (int, error) {
	var next int
	key := []byte(dateKey(tranDate))
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketTranSeq)
		cur := 0
		if data := b.Get(key); data != nil {
			fmt.Sscanf(string(data), "%d", &cur)
		}
		if cur >= 999999 {
			return BusinessRulef(CodeUnbalanced, "transaction sequence for %s exhausted", dateKey(tranDate))
		}
		next = cur + 1
		return b.Put(key, []byte(fmt.Sprintf("%d", next)))
	})
	return next, err
}

// --- GL Movements (C5/C9) ---------------------------------------------------

func (s *Storage) nextGLMovementSeq(tx *bbolt.Tx, glNum string, tranDate time.Time) (int, error) {
	b := tx.Bucket(bucketGLMoveSeq)
	key := []byte(glNum + "|" + dateKey(tranDate))
	cur := 0
	if data := b.Get(key); data != nil {
		fmt.Sscanf(string(data), "%d", &cur)
	}
	next := cur + 1
	if err := b.Put(key, []byte(fmt.Sprintf("%d", next))); err != nil {
		return 0, err
	}
	return next, nil
}

// PutGLMovement appends a GL-Movement row, keyed so that movements for
// one GL on one day sort in posting order ("balanceAfter reflects
// the running post-of-this-leg GL balance").
func (s *Storage) PutGLMovement(m GLMovement) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		seq, err := s.nextGLMovementSeq(tx, m.GLNum, m.TranDate)
		if err != nil {
			return err
		}
		key := fmt.Sprintf("%s|%s|%06d", m.GLNum, dateKey(m.TranDate), seq)
		return putJSON(tx.Bucket(bucketGLMovements), key, &m)
	})
}

func (s *Storage) GLMovementsForDate(tranDate time.Time) ([]GLMovement, error) {
	var out []GLMovement
	err := s.db.View(func(tx *bbolt.Tx) error {
		suffix := "|" + dateKey(tranDate) + "|"
		return tx.Bucket(bucketGLMovements).ForEach(func(k, v []byte) error {
			if bytes.Contains(k, []byte(suffix)) {
				var m GLMovement
				if err := json.Unmarshal(v, &m); err != nil {
					return err
				}
				out = append(out, m)
			}
			return nil
		})
	})
	return out, err
}

// DeleteGLMovementsBySource removes every unified GL-movement row for
// tranDate carrying the given Source, used by EOD Job 4's
// delete-before-reinsert rerun ("Jobs 2 and 4 require a
// delete-before-reinsert on re-run"). It never touches Posting-sourced
// rows, so rerunning Job 4 cannot disturb what Post already committed.
func (s *Storage) DeleteGLMovementsBySource(tranDate time.Time, source GLMovementSource) error {
	suffix := "|" + dateKey(tranDate) + "|"
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketGLMovements)
		var toDelete [][]byte
		if err := b.ForEach(func(k, v []byte) error {
			if !bytes.Contains(k, []byte(suffix)) {
				return nil
			}
			var m GLMovement
			if err := json.Unmarshal(v, &m); err != nil {
				return err
			}
			if m.Source == source {
				key := append([]byte(nil), k...)
				toDelete = append(toDelete, key)
			}
			return nil
		}); err != nil {
			return err
		}
		for _, k := range toDelete {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Storage) PutGLMovementAccrual(m GLMovement, accrTranID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return putJSON(tx.Bucket(bucketGLMoveAccrual), accrTranID, &m)
	})
}

func (s *Storage) GLMovementAccrualsForDate(tranDate time.Time) ([]GLMovement, error) {
	var out []GLMovement
	target := truncateToDate(tranDate)
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketGLMoveAccrual).ForEach(func(k, v []byte) error {
			var m GLMovement
			if err := json.Unmarshal(v, &m); err != nil {
				return err
			}
			if m.TranDate.Equal(target) {
				out = append(out, m)
			}
			return nil
		})
	})
	return out, err
}

// --- EOD Log (C9) -----------------------------------------------------------

func (s *Storage) PutEODLog(row EODLogRow) error {
	key := fmt.Sprintf("%s|%s|%s", dateKey(row.EODDate), row.JobName, row.StartTimestamp.Format(time.RFC3339Nano))
	return s.db.Update(func(tx *bbolt.Tx) error {
		return putJSON(tx.Bucket(bucketEODLog), key, &row)
	})
}

// LatestEODLog returns the most recent log row for (eodDate, jobName),
// used to gate re-execution ("AlreadyExecuted").
func (s *Storage) LatestEODLog(eodDate time.Time, jobName string) (EODLogRow, bool, error) {
	var latest EODLogRow
	var found bool
	prefix := []byte(dateKey(eodDate) + "|" + jobName + "|")
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketEODLog).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var row EODLogRow
			if err := json.Unmarshal(v, &row); err != nil {
				return err
			}
			if !found || row.StartTimestamp.After(latest.StartTimestamp) {
				latest = row
				found = true
			}
		}
		return nil
	})
	return latest, found, err
}

func (s *Storage) EODLogForDate(eodDate time.Time) ([]EODLogRow, error) {
	var out []EODLogRow
	prefix := []byte(dateKey(eodDate) + "|")
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketEODLog).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var row EODLogRow
			if err := json.Unmarshal(v, &row); err != nil {
				return err
			}
			out = append(out, row)
		}
		return nil
	})
	return out, err
}

// --- Transaction History (C6) -----------------------------------------------

func (s *Storage) PutTxnHist(row TxnHistRow) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return putJSON(tx.Bucket(bucketTxnHist), row.TranID, &row)
	})
}

func (s *Storage) TxnHistForAccount(accountNo string) ([]TxnHistRow, error) {
	var out []TxnHistRow
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketTxnHist).ForEach(func(k, v []byte) error {
			var row TxnHistRow
			if err := json.Unmarshal(v, &row); err != nil {
				return err
			}
			if row.AccountNo == accountNo {
				out = append(out, row)
			}
			return nil
		})
	})
	return out, err
}

// --- Interest Accrual Legs (C8) ---------------------------------------------

func (s *Storage) PutAccrualLeg(l AccrualLeg) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return putJSON(tx.Bucket(bucketAccrualLegs), l.AccrTranID, &l)
	})
}

func (s *Storage) GetAccrualLeg(accrTranID string) (AccrualLeg, bool, error) {
	var l AccrualLeg
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		ok, err := getJSON(tx.Bucket(bucketAccrualLegs), accrTranID, &l)
		found = ok
		return err
	})
	return l, found, err
}

func (s *Storage) AccrualLegsByStatus(status AccrualLegStatus, accrualDate time.Time) ([]AccrualLeg, error) {
	var out []AccrualLeg
	target := truncateToDate(accrualDate)
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketAccrualLegs).ForEach(func(k, v []byte) error {
			var l AccrualLeg
			if err := json.Unmarshal(v, &l); err != nil {
				return err
			}
			if l.Status == status && l.AccrualDate.Equal(target) {
				out = append(out, l)
			}
			return nil
		})
	})
	return out, err
}

// NextAccrualSeq mints the next per-accrual-date sequence, bounded at
// 999,999,999 (accrTranId format, property 5).
func (s *Storage) NextAccrualSeq(accrualDate time.Time) (int, error) {
	var next int
	key := []byte(dateKey(accrualDate))
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketAccrualSeq)
		cur := 0
		if data := b.Get(key); data != nil {
			fmt.Sscanf(string(data), "%d", &cur)
		}
		if cur >= 999999999 {
			return BusinessRulef(CodeUnbalanced, "accrual sequence for %s exhausted", dateKey(accrualDate))
		}
		next = cur + 1
		return b.Put(key, []byte(fmt.Sprintf("%d", next)))
	})
	return next, err
}

// --- Interest-Accrual Account Balance (EOD Job 6, Acct_Bal_Accrual) --------

// PutAcctBalAccrual writes EOD Job 6's per-account accrued-interest
// balance row. This is a distinct table from Acct_Bal: accrual
// never mutates the customer's running principal balance, only the
// parallel accrued-interest-to-date row Job 6 produces.
func (s *Storage) PutAcctBalAccrual(row BalanceRow) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return putJSON(tx.Bucket(bucketAcctBalAccr), balanceRowKey(row.Key, row.TranDate), &row)
	})
}

func (s *Storage) GetAcctBalAccrual(accountNo string, tranDate time.Time) (BalanceRow, bool, error) {
	var row BalanceRow
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		ok, err := getJSON(tx.Bucket(bucketAcctBalAccr), balanceRowKey(accountNo, tranDate), &row)
		found = ok
		return err
	})
	return row, found, err
}

// LatestAcctBalAccrualOnOrBefore mirrors LatestBalanceRowOnOrBefore for
// the accrual-balance table, used to carry an opening balance forward
// across Job 6 runs the same way Account-Balance rows do.
func (s *Storage) LatestAcctBalAccrualOnOrBefore(accountNo string, asOf time.Time) (BalanceRow, bool, error) {
	var row BalanceRow
	var found bool
	prefix := []byte(accountNo + "|")
	upperBound := []byte(balanceRowKey(accountNo, asOf) + "\xff")
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketAcctBalAccr).Cursor()
		k, v := c.Seek(upperBound)
		if k == nil {
			k, v = c.Last()
		} else {
			k, v = c.Prev()
		}
		for k != nil && bytes.HasPrefix(k, prefix) {
			if string(k) <= balanceRowKey(accountNo, asOf) {
				if err := json.Unmarshal(v, &row); err != nil {
					return err
				}
				found = true
				return nil
			}
			k, v = c.Prev()
		}
		return nil
	})
	return row, found, err
}

// --- Event log --------------------------------------------------------

func (s *Storage) AppendEvent(event JournalEvent) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		key := fmt.Sprintf("%d_%s", event.TransactionTime.UnixNano(), event.ID)
		return putJSON(tx.Bucket(bucketEvents), key, &event)
	})
}

func (s *Storage) EventsInRange(from, to time.Time) ([]JournalEvent, error) {
	var out []JournalEvent
	fromKey := []byte(fmt.Sprintf("%d", from.UnixNano()))
	toKey := []byte(fmt.Sprintf("%d", to.UnixNano()) + "\xff")
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketEvents).Cursor()
		for k, v := c.Seek(fromKey); k != nil && bytes.Compare(k, toKey) <= 0; k, v = c.Next() {
			var ev JournalEvent
			if err := json.Unmarshal(v, &ev); err != nil {
				return err
			}
			out = append(out, ev)
		}
		return nil
	})
	return out, err
}
