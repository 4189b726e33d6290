package corebank

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"time"
)

// tranId format: T<yyyymmdd><6-seq><3-rand>-<lineNo>. The 6-digit
// sequence is per-business-day and monotonic (minted from a bbolt
// per-date counter in storage.go, via Storage.NextTranSeq); the 3
// random digits are the collision guard for the mint-rate open
// question, backed by crypto/rand instead of a weak PRNG, and
// additionally serialized through the same per-date lock the sequence
// counter uses, so within one process a collision is structurally
// impossible rather than merely improbable.
const tranIDDatePrefixLen = 1 + 8 // "T" + yyyymmdd

func dateStamp(d time.Time) string { return d.Format("20060102") }

func randomDigits(n int) (string, error) {
	max := big.NewInt(1)
	for i := 0; i < n; i++ {
		max.Mul(max, big.NewInt(10))
	}
	v, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", n, v.Int64()), nil
}

// baseTranID builds the part of a tranId shared by every leg of one
// transaction: T + date + 6-digit seq + 3-digit random.
func baseTranID(tranDate time.Time, seq int) (string, error) {
	if seq < 1 || seq > 999999 {
		return "", BusinessRulef(CodeUnbalanced, "transaction sequence %d out of range for %s", seq, dateStamp(tranDate))
	}
	rnd, err := randomDigits(3)
	if err != nil {
		return "", Transientf(CodeDeadlock, err, "failed to generate tranId entropy")
	}
	return fmt.Sprintf("T%s%06d%s", dateStamp(tranDate), seq, rnd), nil
}

// legTranID appends the per-leg line number to a base tranId,
// zero-padded to 3 digits so LegsByBase's byte-lexicographic bbolt
// cursor order stays aligned with numeric order past 9 legs.
func legTranID(base string, lineNo int) string {
	return fmt.Sprintf("%s-%03d", base, lineNo)
}

// splitLegTranID separates a full leg tranId into its base (shared by
// every leg of the transaction) and 1-indexed line number.
func splitLegTranID(tranID string) (base string, lineNo int, err error) {
	for i := len(tranID) - 1; i >= 0; i-- {
		if tranID[i] == '-' {
			n, convErr := strconv.Atoi(tranID[i+1:])
			if convErr != nil {
				return "", 0, fmt.Errorf("corebank: malformed leg tranId %q", tranID)
			}
			return tranID[:i], n, nil
		}
	}
	return "", 0, fmt.Errorf("corebank: tranId %q has no line number", tranID)
}

// SplitLegTranID is the exported form of splitLegTranID, for callers
// outside this package (the HTTP layer groups legs by base tranId to
// build the paged transaction list).
func SplitLegTranID(tranID string) (base string, lineNo int, err error) {
	return splitLegTranID(tranID)
}

// tranDateFromID extracts the business date embedded in a tranId's
// fixed offset (positions 2-9, 1-indexed, i.e. bytes [1:9]).
func tranDateFromID(tranID string) (time.Time, error) {
	if len(tranID) < tranIDDatePrefixLen {
		return time.Time{}, fmt.Errorf("corebank: tranId %q too short", tranID)
	}
	return time.Parse("20060102", tranID[1:9])
}

// accrTranID formats an interest-accrual leg ID: S<yyyymmdd><9-seq>-<1|2>,
// exactly 20 characters ("no delimiter between date and
// sequence; parsers must use fixed offsets").
func accrTranID(accrualDate time.Time, seq int, row int) (string, error) {
	if seq < 1 || seq > 999999999 {
		return "", BusinessRulef(CodeUnbalanced, "accrual sequence %d out of range", seq)
	}
	if row != 1 && row != 2 {
		return "", fmt.Errorf("corebank: accrual leg row must be 1 or 2, got %d", row)
	}
	id := fmt.Sprintf("S%s%09d-%d", dateStamp(accrualDate), seq, row)
	if len(id) != 20 {
		return "", fmt.Errorf("corebank: generated accrTranId %q is %d chars, want 20", id, len(id))
	}
	return id, nil
}

// parseAccrTranID reads the fixed-offset date and sequence without
// relying on a delimiter: positions 2-9 (1-indexed) are the date,
// positions 10-18 are the sequence.
func parseAccrTranID(id string) (date time.Time, seq int, row int, err error) {
	if len(id) != 20 || id[0] != 'S' || id[18] != '-' {
		return time.Time{}, 0, 0, fmt.Errorf("corebank: malformed accrTranId %q", id)
	}
	date, err = time.Parse("20060102", id[1:9])
	if err != nil {
		return time.Time{}, 0, 0, err
	}
	seq, err = strconv.Atoi(id[9:18])
	if err != nil {
		return time.Time{}, 0, 0, err
	}
	row, err = strconv.Atoi(id[19:])
	if err != nil {
		return time.Time{}, 0, 0, err
	}
	return date, seq, row, nil
}
