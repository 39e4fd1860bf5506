// internal/membership/memory.go
package membership

import (
	"context"
	"sync"
)

// MemoryLinkageRegistry is the default in-process registry. Safe for
// concurrent use; each call is one critical section per map.
type MemoryLinkageRegistry struct {
	mu    sync.RWMutex
	links map[int64]string
}

func NewMemoryLinkageRegistry() *MemoryLinkageRegistry {
	return &MemoryLinkageRegistry{
		links: make(map[int64]string),
	}
}

func (r *MemoryLinkageRegistry) Link(_ context.Context, telegramUserID int64, websiteUserID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.links[telegramUserID] = websiteUserID
	return nil
}

func (r *MemoryLinkageRegistry) Lookup(_ context.Context, telegramUserID int64) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	websiteUserID, found := r.links[telegramUserID]
	return websiteUserID, found, nil
}

// MemoryPaymentLedger is the default in-process ledger. The duplicate check
// and the write happen under one lock.
type MemoryPaymentLedger struct {
	mu       sync.RWMutex
	payments map[int64]PaymentRecord
}

func NewMemoryPaymentLedger() *MemoryPaymentLedger {
	return &MemoryPaymentLedger{
		payments: make(map[int64]PaymentRecord),
	}
}

func (l *MemoryPaymentLedger) Record(_ context.Context, rec *PaymentRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.payments[rec.TelegramUserID]; exists {
		return ErrDuplicatePayment
	}
	l.payments[rec.TelegramUserID] = *rec
	return nil
}

func (l *MemoryPaymentLedger) Get(_ context.Context, telegramUserID int64) (*PaymentRecord, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, found := l.payments[telegramUserID]
	if !found {
		return nil, false, nil
	}
	out := rec
	return &out, true, nil
}

func (l *MemoryPaymentLedger) Remove(_ context.Context, telegramUserID int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.payments[telegramUserID]; !exists {
		return ErrNoActivePayment
	}
	delete(l.payments, telegramUserID)
	return nil
}
