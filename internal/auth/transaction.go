package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bnema/nextday-freebusy/internal/auth/store"
	"github.com/bnema/nextday-freebusy/internal/security"
)

// transaction is the state kept between the redirect and the callback.
type transaction struct {
	State        string    `json:"state"`
	Nonce        string    `json:"nonce"`
	CodeVerifier string    `json:"code_verifier"`
	RedirectURI  string    `json:"redirect_uri"`
	CreatedAt    time.Time `json:"created_at"`
}

var errTransactionMismatch = errors.New("transaction does not match state")

func transactionKey(state string) string {
	return "txn:" + state
}

func (c *Client) saveTransaction(ctx context.Context, txn *transaction) error {
	data, err := json.Marshal(txn)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction: %w", err)
	}

	key := transactionKey(txn.State)
	sealed, err := c.sealer.Seal(data, []byte(key))
	if err != nil {
		return err
	}

	if err := c.store.Set(ctx, key, []byte(sealed), c.transactionTTL); err != nil {
		return fmt.Errorf("failed to store transaction: %w", err)
	}
	return nil
}

// takeTransaction loads and deletes the transaction for state; each state
// can be redeemed once.
func (c *Client) takeTransaction(ctx context.Context, state string) (*transaction, error) {
	key := transactionKey(state)

	raw, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	if err := c.store.Delete(ctx, key); err != nil {
		c.logger.Warn("failed to delete login transaction", "error", err)
	}

	plaintext, err := c.sealer.Open(string(raw), []byte(key))
	if err != nil {
		return nil, err
	}

	var txn transaction
	if err := json.Unmarshal(plaintext, &txn); err != nil {
		return nil, security.NewCryptoError("open", "invalid transaction payload").WithCause(err)
	}

	if subtle.ConstantTimeCompare([]byte(txn.State), []byte(state)) != 1 {
		return nil, errTransactionMismatch
	}

	return &txn, nil
}

// forgetTransaction drops a pending transaction without redeeming it.
func (c *Client) forgetTransaction(ctx context.Context, state string) {
	if state == "" {
		return
	}
	if err := c.store.Delete(ctx, transactionKey(state)); err != nil && !errors.Is(err, store.ErrNotFound) {
		c.logger.Warn("failed to delete login transaction", "error", err)
	}
}
