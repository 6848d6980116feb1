package stellar

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/txnbuild"
)

// AssetHolder is one account holding a positive balance of an asset.
type AssetHolder struct {
	Address string
	Balance decimal.Decimal
}

// PaymentRecord is one incoming payment to an account.
type PaymentRecord struct {
	ID          string
	From        string
	To          string
	AssetCode   string
	AssetIssuer string
	Amount      decimal.Decimal
	TxHash      string
	CreatedAt   time.Time
}

// Gateway is the ledger capability the settlement core depends on. The
// production implementation is Client; tests substitute a fake.
type Gateway interface {
	// LoadAccount fetches the account's current sequence state for use as
	// a transaction source.
	LoadAccount(ctx context.Context, accountID string) (*txnbuild.SimpleAccount, error)

	// SubmitTransaction submits a signed envelope and returns its hash.
	SubmitTransaction(ctx context.Context, tx *txnbuild.Transaction) (string, error)

	// AssetHolders returns all accounts holding a positive balance of the
	// asset, excluding the issuer itself.
	AssetHolders(ctx context.Context, assetCode, issuer string) ([]AssetHolder, error)

	// IncomingPayments returns recent payments received by the account,
	// newest first.
	IncomingPayments(ctx context.Context, accountID string, limit int) ([]PaymentRecord, error)

	// FundTestAccount funds an account via Friendbot. Test networks only.
	FundTestAccount(ctx context.Context, accountID string) error

	NetworkPassphrase() string
	USDCAsset() txnbuild.CreditAsset
}

// IsValidAddress reports whether addr is a well-formed Stellar public key.
func IsValidAddress(addr string) bool {
	_, err := keypair.ParseAddress(addr)
	return err == nil
}
