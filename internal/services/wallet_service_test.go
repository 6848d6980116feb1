package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/txnbuild"

	"lumio/internal/models"
	"lumio/internal/stellar"
)

func newWalletService(t *testing.T) (*WalletService, *fakeGateway) {
	db := setupTestDB(t)
	gateway := newFakeGateway()
	v := newTestVault(t)
	return NewWalletService(db, gateway, v), gateway
}

func TestCreateEventWallet(t *testing.T) {
	service, _ := newWalletService(t)

	wallet, err := service.CreateEventWallet()
	if err != nil {
		t.Fatalf("CreateEventWallet failed: %v", err)
	}

	if !stellar.IsValidAddress(wallet.PublicKey) {
		t.Errorf("expected a valid public key, got %q", wallet.PublicKey)
	}
	if wallet.SecretEncrypted == wallet.PublicKey || wallet.SecretEncrypted == "" {
		t.Fatal("expected an encrypted secret")
	}

	// The encrypted secret must decrypt back to the seed of the same key
	secret, err := service.vault.Decrypt(wallet.SecretEncrypted)
	if err != nil {
		t.Fatalf("failed to decrypt wallet secret: %v", err)
	}
	kp, err := keypair.ParseFull(secret)
	if err != nil {
		t.Fatalf("decrypted secret is not a valid seed: %v", err)
	}
	if kp.Address() != wallet.PublicKey {
		t.Errorf("seed address %s does not match public key %s", kp.Address(), wallet.PublicKey)
	}
}

func TestSetupEventAsset(t *testing.T) {
	db := setupTestDB(t)
	gateway := newFakeGateway()
	v := newTestVault(t)
	service := NewWalletService(db, gateway, v)

	event := createTestEvent(t, db, v, models.EventStatusWalletCreated)

	result, err := service.SetupEventAsset(context.Background(), event.ID)
	if err != nil {
		t.Fatalf("SetupEventAsset failed: %v", err)
	}

	if result.TransactionHash != "txhash-1" {
		t.Errorf("expected txhash-1, got %s", result.TransactionHash)
	}
	if result.AssetCode != *event.AssetCode {
		t.Errorf("expected asset code %s, got %s", *event.AssetCode, result.AssetCode)
	}
	if result.Issuer != *event.StellarPublicKey {
		t.Errorf("expected issuer %s, got %s", *event.StellarPublicKey, result.Issuer)
	}

	if len(gateway.submitted) != 1 {
		t.Fatalf("expected 1 submitted transaction, got %d", len(gateway.submitted))
	}
	tx := gateway.submitted[0]
	ops := tx.Operations()
	if len(ops) != 2 {
		t.Fatalf("expected 2 operations, got %d", len(ops))
	}

	setOptions, ok := ops[0].(*txnbuild.SetOptions)
	if !ok {
		t.Fatalf("expected first operation to be SetOptions, got %T", ops[0])
	}
	var revocable, clawback bool
	for _, flag := range setOptions.SetFlags {
		switch flag {
		case txnbuild.AuthRevocable:
			revocable = true
		case txnbuild.AuthClawbackEnabled:
			clawback = true
		}
	}
	if !revocable || !clawback {
		t.Errorf("expected AuthRevocable and AuthClawbackEnabled flags, got %v", setOptions.SetFlags)
	}

	changeTrust, ok := ops[1].(*txnbuild.ChangeTrust)
	if !ok {
		t.Fatalf("expected second operation to be ChangeTrust, got %T", ops[1])
	}
	if changeTrust.Limit != usdcTrustLimit {
		t.Errorf("expected trust limit %s, got %s", usdcTrustLimit, changeTrust.Limit)
	}

	if len(tx.Signatures()) != 1 {
		t.Errorf("expected exactly the custodial signature, got %d signatures", len(tx.Signatures()))
	}
}

func TestSetupEventAssetPreconditions(t *testing.T) {
	db := setupTestDB(t)
	gateway := newFakeGateway()
	v := newTestVault(t)
	service := NewWalletService(db, gateway, v)

	_, err := service.SetupEventAsset(context.Background(), uuid.New())
	assertErrorCode(t, err, ErrCodeNotFound)

	noWallet := createTestEvent(t, db, v, models.EventStatusWalletCreated)
	db.Model(&models.Event{}).Where("id = ?", noWallet.ID).Updates(map[string]interface{}{
		"stellar_public_key":       nil,
		"stellar_secret_encrypted": nil,
	})
	_, err = service.SetupEventAsset(context.Background(), noWallet.ID)
	assertErrorCode(t, err, ErrCodeWalletNotInitialized)

	noAsset := createTestEvent(t, db, v, models.EventStatusWalletCreated)
	db.Model(&models.Event{}).Where("id = ?", noAsset.ID).Update("asset_code", nil)
	_, err = service.SetupEventAsset(context.Background(), noAsset.ID)
	assertErrorCode(t, err, ErrCodeAssetNotConfigured)

	if len(gateway.submitted) != 0 {
		t.Errorf("expected no submissions on failed preconditions, got %d", len(gateway.submitted))
	}
}

func TestSetupEventAssetWrapsSubmitFailure(t *testing.T) {
	db := setupTestDB(t)
	gateway := newFakeGateway()
	v := newTestVault(t)
	service := NewWalletService(db, gateway, v)

	event := createTestEvent(t, db, v, models.EventStatusWalletCreated)
	gateway.submitErr[0] = errors.New("horizon returned status 504")

	_, err := service.SetupEventAsset(context.Background(), event.ID)
	var se *stellar.Error
	if !errors.As(err, &se) {
		t.Fatalf("expected structured ledger error, got %v", err)
	}
	if se.Code != stellar.CodeTxFailed {
		t.Errorf("expected TX_FAILED, got %s", se.Code)
	}
	if !se.Recoverable {
		t.Error("submit failure must be recoverable")
	}
}

func TestSetupEventAssetPassesThroughLedgerError(t *testing.T) {
	db := setupTestDB(t)
	gateway := newFakeGateway()
	v := newTestVault(t)
	service := NewWalletService(db, gateway, v)

	event := createTestEvent(t, db, v, models.EventStatusWalletCreated)
	gateway.submitErr[0] = stellar.NewError(stellar.CodeNetworkError, "request timed out", true)

	_, err := service.SetupEventAsset(context.Background(), event.ID)
	var se *stellar.Error
	if !errors.As(err, &se) {
		t.Fatalf("expected structured ledger error, got %v", err)
	}
	if se.Code != stellar.CodeNetworkError {
		t.Errorf("expected NETWORK_ERROR passed through unwrapped, got %s", se.Code)
	}
}
