package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/albarami/Whale-hunter/internal/clients"
	"github.com/albarami/Whale-hunter/internal/domain"
)

// IngestFunding pulls the incoming transfer history of a wallet and
// records each transfer as a funding edge. Transfers from known
// exchange wallets mark the wallet CEX-funded instead.
func (e *Engine) IngestFunding(ctx context.Context, wallet string, since time.Time) (int, error) {
	if err := domain.ValidateAddress(wallet); err != nil {
		return 0, fmt.Errorf("funding wallet: %w", err)
	}

	transfers, err := e.tracer.IncomingTransfers(ctx, wallet, since)
	if err != nil {
		return 0, fmt.Errorf("trace funding %s: %w", wallet, err)
	}

	var recorded int
	for _, tr := range transfers {
		if err := e.recordTransfer(ctx, tr); err != nil {
			e.log.Warn("record funding edge failed",
				"funder", tr.From, "funded", tr.To, "error", err)
			continue
		}
		recorded++
	}
	return recorded, nil
}

// ConsumeTransfers records live funding transfers from a stream until
// the channel closes or the context ends.
func (e *Engine) ConsumeTransfers(ctx context.Context, transfers <-chan clients.Transfer) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tr, ok := <-transfers:
			if !ok {
				return nil
			}
			if err := e.recordTransfer(ctx, tr); err != nil {
				e.log.Warn("record funding edge failed",
					"funder", tr.From, "funded", tr.To, "error", err)
			}
		}
	}
}

func (e *Engine) recordTransfer(ctx context.Context, tr clients.Transfer) error {
	if err := domain.ValidateAddress(tr.From); err != nil {
		return fmt.Errorf("funder: %w", err)
	}
	if err := domain.ValidateAddress(tr.To); err != nil {
		return fmt.Errorf("funded: %w", err)
	}

	mu := e.locks.lock(tr.To)
	mu.Lock()
	defer mu.Unlock()

	return e.trust.RecordFunding(ctx, &domain.FundingEdge{
		Funder:         tr.From,
		Funded:         tr.To,
		Amount:         tr.AmountSOL,
		Timestamp:      tr.Time(),
		TxRef:          tr.TxRef,
		EdgeConfidence: 1.0,
	})
}
