package corebank

import (
	"go.uber.org/zap"
)

// Ledger wires every component (C1-C11) into one cohesive handle,
// grounded in the teacher's AccountingEngine: the single struct
// cmd/server and cmd/demo build once and hand to every caller, rather
// than wiring each component separately at each call site.
type Ledger struct {
	Storage *Storage
	Clock *SystemClock
	COA *ChartOfAccounts
	Registry *AccountRegistry
	MD *MasterData
	Balances *BalanceStore
	Query *BalanceQuery
	History *TransactionHistory
	Events *EventStore
	Engine *TransactionEngine
	Accrual *InterestAccrual
	Reports *FinancialReports
	EOD *EODPipeline
	BOD *BODProcessor
}

// NewLedger opens dbPath and wires up every component. reportDir is
// where EOD Job 7 writes TrialBalance/BalanceSheet files.
func NewLedger(dbPath, reportDir string, log *zap.Logger) (*Ledger, error) {
	if log == nil {
		log = zap.NewNop()
	}
	storage, err := NewStorage(dbPath)
	if err != nil {
		return nil, err
	}

	clock := NewSystemClock()
	if date, found, err := storage.GetParameter("System_Date"); err == nil && found {
		if t, perr := parseDateKey(date); perr == nil {
			clock.Set(t, "startup")
		}
	}

	coa := NewChartOfAccounts()
	if rows, err := storage.ListGLSetup(); err == nil {
		_ = coa.Load(rows)
	}

	registry := NewAccountRegistry(storage)
	md := NewMasterData()
	balances := NewBalanceStore(storage, clock)
	query := NewBalanceQuery(storage, clock, registry, balances)
	history := NewTransactionHistory(storage)
	events := NewEventStore(storage)
	engine := NewTransactionEngine(storage, clock, registry, balances, query, coa, history, events)
	accrual := NewInterestAccrual(storage, clock, registry, balances, md)
	reports := NewFinancialReports(storage, coa, registry, md, reportDir)
	eod := NewEODPipeline(storage, clock, registry, balances, coa, md, accrual, reports, events, log)
	bod := NewBODProcessor(storage, clock, registry, balances, query, coa, history, events, log)

	return &Ledger{
		Storage: storage, Clock: clock, COA: coa, Registry: registry, MD: md,
		Balances: balances, Query: query, History: history, Events: events,
		Engine: engine, Accrual: accrual, Reports: reports, EOD: eod, BOD: bod,
	}, nil
}

func (l *Ledger) Close() error {
	return l.Storage.Close()
}
