package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/txnbuild"
	"gorm.io/gorm"

	"lumio/internal/models"
	"lumio/internal/stellar"
	"lumio/internal/vault"
)

// Trust line ceiling for the USDC line on event accounts.
const usdcTrustLimit = "10000000"

// baseFee is the max fee per operation in stroops.
const baseFee = 50000

// EventWallet is a freshly provisioned custodial identity.
type EventWallet struct {
	PublicKey       string
	SecretEncrypted string
}

// SetupAssetResult reports the asset-configuration transaction.
type SetupAssetResult struct {
	TransactionHash string `json:"transaction_hash"`
	AssetCode       string `json:"asset_code"`
	Issuer          string `json:"issuer"`
}

// WalletService provisions exactly one custodial identity per event and
// configures it for compliant asset issuance.
type WalletService struct {
	db      *gorm.DB
	gateway stellar.Gateway
	vault   *vault.Vault
}

func NewWalletService(db *gorm.DB, gateway stellar.Gateway, v *vault.Vault) *WalletService {
	return &WalletService{
		db:      db,
		gateway: gateway,
		vault:   v,
	}
}

// CreateEventWallet generates a fresh keypair and returns the public key
// with the vault-encrypted secret. No side effects beyond key generation;
// persistence belongs to the lifecycle engine.
func (s *WalletService) CreateEventWallet() (*EventWallet, error) {
	kp, err := keypair.Random()
	if err != nil {
		return nil, err
	}

	encrypted, err := s.vault.Encrypt(kp.Seed())
	if err != nil {
		return nil, err
	}

	return &EventWallet{
		PublicKey:       kp.Address(),
		SecretEncrypted: encrypted,
	}, nil
}

// SetupEventAsset configures the event account for asset issuance: sets the
// AUTH_REVOCABLE and AUTH_CLAWBACK_ENABLED flags and establishes the USDC
// trust line, in one signed transaction.
func (s *WalletService) SetupEventAsset(ctx context.Context, eventID uuid.UUID) (*SetupAssetResult, error) {
	var event models.Event
	if err := s.db.Where("id = ?", eventID).First(&event).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, notFoundErr("event", eventID)
		}
		return nil, err
	}

	if event.StellarPublicKey == nil || event.StellarSecretEncrypted == nil {
		return nil, &Error{Code: ErrCodeWalletNotInitialized, Message: "event wallet not initialized"}
	}
	if event.AssetCode == nil {
		return nil, &Error{Code: ErrCodeAssetNotConfigured, Message: "event asset code not set"}
	}

	log.Printf("Setting up asset %s for event %s (issuer %s)", *event.AssetCode, eventID, *event.StellarPublicKey)
	start := time.Now()

	hash, err := s.submitSetupTransaction(ctx, &event)
	if err != nil {
		log.Printf("Asset setup failed for event %s after %s: %v", eventID, time.Since(start).Round(time.Millisecond), err)
		var se *stellar.Error
		if errors.As(err, &se) {
			return nil, err
		}
		return nil, stellar.NewError(stellar.CodeTxFailed, "failed to setup asset: "+err.Error(), true)
	}

	log.Printf("Asset setup completed for event %s: tx %s (%s)", eventID, hash, time.Since(start).Round(time.Millisecond))
	return &SetupAssetResult{
		TransactionHash: hash,
		AssetCode:       *event.AssetCode,
		Issuer:          *event.StellarPublicKey,
	}, nil
}

func (s *WalletService) submitSetupTransaction(ctx context.Context, event *models.Event) (string, error) {
	// The secret stays in memory only for the duration of signing.
	secret, err := s.vault.Decrypt(*event.StellarSecretEncrypted)
	if err != nil {
		return "", err
	}

	kp, err := keypair.ParseFull(secret)
	if err != nil {
		return "", err
	}

	account, err := s.gateway.LoadAccount(ctx, *event.StellarPublicKey)
	if err != nil {
		return "", err
	}

	usdc := s.gateway.USDCAsset()
	tx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        account,
		IncrementSequenceNum: true,
		Operations: []txnbuild.Operation{
			&txnbuild.SetOptions{
				SetFlags: []txnbuild.AccountFlag{txnbuild.AuthRevocable, txnbuild.AuthClawbackEnabled},
			},
			&txnbuild.ChangeTrust{
				Line:  txnbuild.ChangeTrustAssetWrapper{Asset: usdc},
				Limit: usdcTrustLimit,
			},
		},
		BaseFee:       baseFee,
		Preconditions: txnbuild.Preconditions{TimeBounds: txnbuild.NewTimeout(30)},
	})
	if err != nil {
		return "", err
	}

	tx, err = tx.Sign(s.gateway.NetworkPassphrase(), kp)
	if err != nil {
		return "", err
	}

	return s.gateway.SubmitTransaction(ctx, tx)
}
