package corebank

import (
	"fmt"
	"sync"
	"time"
)

type AccountStatus string

const (
	AccountActive AccountStatus = "Active"
	AccountInactive AccountStatus = "Inactive"
	AccountClosed AccountStatus = "Closed"
	AccountDormant AccountStatus = "Dormant"
)

// Account is the unified record of "Account (unified)": a single
// shape for both customer and office accounts, distinguished by
// IsCustomer rather than by which table holds the row. This resolves
// the single-FK question for Acct_Bal by giving every account one
// identity space keyed by AccountNo regardless of origin.
type Account struct {
	AccountNo string
	GLNum string // owning leaf GL
	IsCustomer bool
	Status AccountStatus
	OpeningDate time.Time
	MaturityDate *time.Time
	ClosureDate *time.Time
	LoanLimit Money // non-zero only when GLNum begins with "2" (asset)
	SubProduct string
}

// AccountInfo is the read-only snapshot returns from resolve: "an
// AccountInfo is a value snapshot; callers never mutate the underlying
// record through it."
type AccountInfo struct {
	AccountNo string
	GLNum string
	IsCustomer bool
	Status AccountStatus
	LoanLimit Money
	SubProduct string
}

func (a AccountInfo) Classify() GLClass { return Classify(a.GLNum) }

func accountInfoFrom(a Account) AccountInfo {
	return AccountInfo{
		AccountNo: a.AccountNo,
		GLNum: a.GLNum,
		IsCustomer: a.IsCustomer,
		Status: a.Status,
		LoanLimit: a.LoanLimit,
		SubProduct: a.SubProduct,
	}
}

// AccountStore is the persistence boundary C3 relies on; Storage
// (storage.go) implements it over bbolt buckets.
type AccountStore interface {
	GetAccount(accountNo string) (Account, bool, error)
	PutAccount(a Account) error
	ListAccounts() ([]Account, error)
	NextOfficeAccountSeq(glNum string) (int, error)
}

// AccountRegistry is C3: a thin cache over AccountStore, invalidated on
// every write, grounded in the teacher's direct-storage-call style (no
// separate cache layer existed in ahmed-com-fin; this is new code
// against the same storage API, per SPEC_FULL C3).
type AccountRegistry struct {
	store AccountStore
	mu sync.RWMutex
	cache map[string]AccountInfo
}

func NewAccountRegistry(store AccountStore) *AccountRegistry {
	return &AccountRegistry{store: store, cache: make(map[string]AccountInfo)}
}

// Resolve is resolve(accountNo) -> AccountInfo | NotFound.
func (r *AccountRegistry) Resolve(accountNo string) (AccountInfo, error) {
	r.mu.RLock()
	if info, ok := r.cache[accountNo]; ok {
		r.mu.RUnlock()
		return info, nil
	}
	r.mu.RUnlock()

	a, ok, err := r.store.GetAccount(accountNo)
	if err != nil {
		return AccountInfo{}, IOErrorf(CodeAccountNotFound, err, "reading account %q", accountNo)
	}
	if !ok {
		return AccountInfo{}, NotFoundf(CodeAccountNotFound, "account %q not found", accountNo)
	}
	info := accountInfoFrom(a)
	r.mu.Lock()
	r.cache[accountNo] = info
	r.mu.Unlock()
	return info, nil
}

func (r *AccountRegistry) Exists(accountNo string) bool {
	_, err := r.Resolve(accountNo)
	return err == nil
}

// invalidate drops accountNo from the cache; called after any write
// that changes the underlying record (open, status change, closure).
func (r *AccountRegistry) invalidate(accountNo string) {
	r.mu.Lock()
	delete(r.cache, accountNo)
	r.mu.Unlock()
}

// Open persists a new account and invalidates its cache entry. Master
// data (sub-product/GL mapping) validation is assumed to have already
// happened upstream, since full account-opening workflow (maker-checker
// included) is explicitly out of scope. This is the minimal write
// path the core needs to seed/adjust accounts for tests and the demo.
func (r *AccountRegistry) Open(a Account) error {
	if a.LoanLimit.IsPositive() || a.LoanLimit.IsNegative() {
		if Classify(a.GLNum) != GLAsset {
			return BusinessRulef(CodeAccountClosureNonZero, "loanLimit is only valid on asset-GL accounts, got GL %q", a.GLNum)
		}
	}
	if err := r.store.PutAccount(a); err != nil {
		return IOErrorf(CodeAccountNotFound, err, "opening account %q", a.AccountNo)
	}
	r.invalidate(a.AccountNo)
	return nil
}

// SetStatus transitions an account's status (e.g. Active -> Inactive,
// or -> Closed once balance is verified zero by the caller).
func (r *AccountRegistry) SetStatus(accountNo string, status AccountStatus) error {
	a, ok, err := r.store.GetAccount(accountNo)
	if err != nil {
		return IOErrorf(CodeAccountNotFound, err, "reading account %q", accountNo)
	}
	if !ok {
		return NotFoundf(CodeAccountNotFound, "account %q not found", accountNo)
	}
	a.Status = status
	if status == AccountClosed {
		now := time.Now().UTC()
		a.ClosureDate = &now
	}
	if err := r.store.PutAccount(a); err != nil {
		return IOErrorf(CodeAccountNotFound, err, "updating account %q", accountNo)
	}
	r.invalidate(accountNo)
	return nil
}

// AllOpen returns every account whose Status is not Closed, the
// "open account" input to C2's active-GL query.
func (r *AccountRegistry) AllOpen() []Account {
	all, err := r.store.ListAccounts()
	if err != nil {
		return nil
	}
	out := make([]Account, 0, len(all))
	for _, a := range all {
		if a.Status != AccountClosed {
			out = append(out, a)
		}
	}
	return out
}

// NextOfficeAccountNo mints the next office account number for glNum:
// "9" + glNum + 2-digit sequence, capped at 99 (boundary
// behavior "Office account number sequence at 99 refuses the 100th
// account"). The underlying sequence is single-writer per GL, enforced
// by the store's NextOfficeAccountSeq.
func (r *AccountRegistry) NextOfficeAccountNo(glNum string) (string, error) {
	seq, err := r.store.NextOfficeAccountSeq(glNum)
	if err != nil {
		return "", err
	}
	if seq > 99 {
		return "", BusinessRulef(CodeAccountSeqExhausted, "office account sequence for GL %q exhausted at 99", glNum)
	}
	return formatOfficeAccountNo(glNum, seq), nil
}

func formatOfficeAccountNo(glNum string, seq int) string {
	return fmt.Sprintf("9%s%02d", glNum, seq)
}
