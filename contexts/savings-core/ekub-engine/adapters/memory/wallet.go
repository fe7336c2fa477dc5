package memory

import (
	"context"
	"fmt"
	"sync"

	domainerrors "ekub/contexts/savings-core/ekub-engine/domain/errors"
)

// Wallet is an in-memory WalletService with per-reference idempotency,
// matching the contract the engine expects from the real wallet: replaying a
// debit or credit with a reference it has already honored is a no-op.
type Wallet struct {
	mu       sync.Mutex
	balances map[string]float64
	applied  map[string]struct{}

	// FailCredits makes every new credit fail, for payout retry scenarios.
	FailCredits bool
	// FailDebits makes every new debit fail with a transport-style error.
	FailDebits bool
}

func NewWallet() *Wallet {
	return &Wallet{
		balances: make(map[string]float64),
		applied:  make(map[string]struct{}),
	}
}

func (w *Wallet) Deposit(memberID string, amount float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.balances[memberID] += amount
}

func (w *Wallet) Balance(memberID string) float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balances[memberID]
}

func (w *Wallet) Debit(_ context.Context, memberID string, amount float64, reference string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, done := w.applied[reference]; done {
		return nil
	}
	if w.FailDebits {
		return fmt.Errorf("%w: debit %s rejected", domainerrors.ErrWalletUnavailable, reference)
	}
	if w.balances[memberID] < amount {
		return domainerrors.ErrInsufficientFunds
	}
	w.balances[memberID] -= amount
	w.applied[reference] = struct{}{}
	return nil
}

func (w *Wallet) Credit(_ context.Context, memberID string, amount float64, reference string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, done := w.applied[reference]; done {
		return nil
	}
	if w.FailCredits {
		return fmt.Errorf("%w: credit %s rejected", domainerrors.ErrWalletUnavailable, reference)
	}
	w.balances[memberID] += amount
	w.applied[reference] = struct{}{}
	return nil
}
