package escrow

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"greentrace/lifecycle-engine/internal/fees"
	"greentrace/lifecycle-engine/internal/lifecycle"
)

// MemTreasury is an in-memory account book implementing the engine's
// Treasury collaborator. Collect moves funds from an actor into the escrow
// pool, Release returns them, Disburse pays out of the pool. Production
// deployments replace this with a token-contract adapter; the engine only
// sees the interface.
type MemTreasury struct {
	mu       sync.Mutex
	balances map[lifecycle.Actor]*big.Int
	escrowed *big.Int
}

func NewMemTreasury() *MemTreasury {
	return &MemTreasury{
		balances: map[lifecycle.Actor]*big.Int{},
		escrowed: new(big.Int),
	}
}

// Deposit credits an actor's balance. Test and local-run plumbing.
func (t *MemTreasury) Deposit(actor lifecycle.Actor, amount fees.Amount) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.credit(actor, amount.Int())
}

func (t *MemTreasury) credit(actor lifecycle.Actor, v *big.Int) {
	bal, ok := t.balances[actor]
	if !ok {
		bal = new(big.Int)
		t.balances[actor] = bal
	}
	bal.Add(bal, v)
}

// Balance returns a copy of an actor's current balance.
func (t *MemTreasury) Balance(actor lifecycle.Actor) fees.Amount {
	t.mu.Lock()
	defer t.mu.Unlock()
	bal, ok := t.balances[actor]
	if !ok {
		return fees.Zero()
	}
	return fees.NewAmount(bal)
}

// Escrowed returns the total currently held in escrow.
func (t *MemTreasury) Escrowed() fees.Amount {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fees.NewAmount(t.escrowed)
}

func (t *MemTreasury) Collect(ctx context.Context, from lifecycle.Actor, amount fees.Amount) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	bal, ok := t.balances[from]
	v := amount.Int()
	if !ok || bal.Cmp(v) < 0 {
		return fmt.Errorf("escrow: insufficient balance for %s", from)
	}
	bal.Sub(bal, v)
	t.escrowed.Add(t.escrowed, v)
	return nil
}

func (t *MemTreasury) Release(ctx context.Context, to lifecycle.Actor, amount fees.Amount) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	v := amount.Int()
	if t.escrowed.Cmp(v) < 0 {
		return fmt.Errorf("escrow: release of %s exceeds escrowed funds", amount)
	}
	t.escrowed.Sub(t.escrowed, v)
	t.credit(to, v)
	return nil
}

func (t *MemTreasury) Disburse(ctx context.Context, to lifecycle.Actor, amount fees.Amount) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.credit(to, amount.Int())
	return nil
}
