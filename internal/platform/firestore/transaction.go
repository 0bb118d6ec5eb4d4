package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
)

const (
	// MaxTxWrites is the number of writes a single Firestore transaction accepts.
	MaxTxWrites = 500

	txAttempts = 5
	txTimeout  = 15 * time.Second
)

// TxFunc is executed within a Firestore transaction.
type TxFunc func(ctx context.Context, tx *firestore.Transaction) error

// ReadSnapshot runs fn in a read-only transaction, so every read observes the same point in time.
func (p *Provider) ReadSnapshot(ctx context.Context, fn TxFunc) error {
	return p.runTx(ctx, "transaction.read", fn, firestore.ReadOnly)
}

// Commit runs fn in a read-write transaction. Firestore reruns fn when the commit hits contention.
func (p *Provider) Commit(ctx context.Context, fn TxFunc) error {
	return p.runTx(ctx, "transaction.commit", fn, firestore.MaxAttempts(txAttempts))
}

func (p *Provider) runTx(ctx context.Context, op string, fn TxFunc, opts ...firestore.TransactionOption) error {
	if fn == nil {
		return WrapError(op, errors.New("firestore: transaction function is nil"))
	}
	client, err := p.Client(ctx)
	if err != nil {
		return err
	}
	txCtx, cancel := boundedContext(ctx, txTimeout)
	defer cancel()
	return WrapError(op, client.RunTransaction(txCtx, fn, opts...))
}

// boundedContext limits ctx to at most limit, keeping an earlier caller deadline.
func boundedContext(ctx context.Context, limit time.Duration) (context.Context, context.CancelFunc) {
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= limit {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, limit)
}
