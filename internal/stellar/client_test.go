package stellar

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/txnbuild"

	"lumio/internal/config"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(config.StellarConfig{
		Network:      "testnet",
		HorizonURL:   server.URL,
		FriendbotURL: server.URL + "/friendbot",
	})
	return client, server
}

func TestLoadAccount(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/accounts/GABC" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"id":"GABC","sequence":"123456789"}`))
	}))

	account, err := client.LoadAccount(context.Background(), "GABC")
	if err != nil {
		t.Fatalf("LoadAccount failed: %v", err)
	}
	if account.Sequence != 123456789 {
		t.Errorf("expected sequence 123456789, got %d", account.Sequence)
	}
	if account.AccountID != "GABC" {
		t.Errorf("expected account GABC, got %s", account.AccountID)
	}
}

func TestLoadAccountBadSequence(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"GABC","sequence":"not-a-number"}`))
	}))

	_, err := client.LoadAccount(context.Background(), "GABC")
	var se *Error
	if !errors.As(err, &se) || se.Code != CodeNetworkError {
		t.Fatalf("expected NETWORK_ERROR, got %v", err)
	}
}

func buildTestTransaction(t *testing.T) *txnbuild.Transaction {
	kp, err := keypair.Random()
	if err != nil {
		t.Fatalf("failed to generate keypair: %v", err)
	}

	tx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        &txnbuild.SimpleAccount{AccountID: kp.Address(), Sequence: 1},
		IncrementSequenceNum: true,
		Operations: []txnbuild.Operation{
			&txnbuild.Payment{
				Destination: kp.Address(),
				Asset:       txnbuild.NativeAsset{},
				Amount:      "1",
			},
		},
		BaseFee:       txnbuild.MinBaseFee,
		Preconditions: txnbuild.Preconditions{TimeBounds: txnbuild.NewTimeout(60)},
	})
	if err != nil {
		t.Fatalf("failed to build transaction: %v", err)
	}
	return tx
}

func TestSubmitTransaction(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/transactions" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseForm(); err != nil || r.PostForm.Get("tx") == "" {
			t.Error("expected tx form field with envelope")
		}
		w.Write([]byte(`{"hash":"abc123"}`))
	}))

	hash, err := client.SubmitTransaction(context.Background(), buildTestTransaction(t))
	if err != nil {
		t.Fatalf("SubmitTransaction failed: %v", err)
	}
	if hash != "abc123" {
		t.Errorf("expected hash abc123, got %s", hash)
	}
}

func TestSubmitTransactionRejected(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{
			"title": "Transaction Failed",
			"extras": {"result_codes": {"transaction": "tx_failed", "operations": ["op_underfunded"]}}
		}`))
	}))

	_, err := client.SubmitTransaction(context.Background(), buildTestTransaction(t))
	var se *Error
	if !errors.As(err, &se) {
		t.Fatalf("expected structured error, got %v", err)
	}
	if se.Code != CodeTxFailed {
		t.Errorf("expected TX_FAILED, got %s", se.Code)
	}
	if !se.Underfunded() {
		t.Error("expected Underfunded() for op_underfunded")
	}
	if se.BadSequence() {
		t.Error("did not expect BadSequence()")
	}
}

func TestAssetHolders(t *testing.T) {
	issuer := "GISSUER"
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"_embedded":{"records":[
			{"id":"GHOLDER1","balances":[{"balance":"50.0000000","asset_type":"credit_alphanum12","asset_code":"EVTABC","asset_issuer":"GISSUER"}]},
			{"id":"GHOLDER2","balances":[{"balance":"0.0000000","asset_type":"credit_alphanum12","asset_code":"EVTABC","asset_issuer":"GISSUER"}]},
			{"id":"GISSUER","balances":[{"balance":"100.0000000","asset_type":"credit_alphanum12","asset_code":"EVTABC","asset_issuer":"GISSUER"}]}
		]}}`))
	}))

	holders, err := client.AssetHolders(context.Background(), "EVTABC", issuer)
	if err != nil {
		t.Fatalf("AssetHolders failed: %v", err)
	}

	// Zero balances and the issuer itself are excluded
	if len(holders) != 1 {
		t.Fatalf("expected 1 holder, got %d", len(holders))
	}
	if holders[0].Address != "GHOLDER1" {
		t.Errorf("expected GHOLDER1, got %s", holders[0].Address)
	}
	if !holders[0].Balance.Equal(decimal.NewFromInt(50)) {
		t.Errorf("expected balance 50, got %s", holders[0].Balance)
	}
}

func TestIncomingPayments(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"_embedded":{"records":[
			{"id":"1","type":"payment","from":"GBUYER","to":"GEVENT","asset_type":"credit_alphanum4","asset_code":"USDC","asset_issuer":"GISSUER","amount":"25.0000000","transaction_hash":"hash1","created_at":"2026-08-30T12:00:00Z"},
			{"id":"2","type":"payment","from":"GEVENT","to":"GOTHER","asset_type":"credit_alphanum4","asset_code":"USDC","asset_issuer":"GISSUER","amount":"5.0000000","transaction_hash":"hash2","created_at":"2026-08-30T12:01:00Z"},
			{"id":"3","type":"create_account","from":"GBUYER","to":"GEVENT","amount":"100.0000000","transaction_hash":"hash3","created_at":"2026-08-30T12:02:00Z"}
		]}}`))
	}))

	payments, err := client.IncomingPayments(context.Background(), "GEVENT", 50)
	if err != nil {
		t.Fatalf("IncomingPayments failed: %v", err)
	}

	// Outgoing payments and non-payment operations are excluded
	if len(payments) != 1 {
		t.Fatalf("expected 1 payment, got %d", len(payments))
	}
	if payments[0].TxHash != "hash1" {
		t.Errorf("expected hash1, got %s", payments[0].TxHash)
	}
	if !payments[0].Amount.Equal(decimal.NewFromInt(25)) {
		t.Errorf("expected amount 25, got %s", payments[0].Amount)
	}
}

func TestFundTestAccountMainnetRefused(t *testing.T) {
	client := NewClient(config.StellarConfig{
		Network:    "mainnet",
		HorizonURL: "https://horizon.stellar.org",
	})

	err := client.FundTestAccount(context.Background(), "GABC")
	var se *Error
	if !errors.As(err, &se) {
		t.Fatalf("expected structured error, got %v", err)
	}
	if se.Code != CodeNetworkMismatch {
		t.Errorf("expected NETWORK_MISMATCH, got %s", se.Code)
	}
	if se.Recoverable {
		t.Error("network mismatch must not be recoverable")
	}
}

func TestIsValidAddress(t *testing.T) {
	kp, err := keypair.Random()
	if err != nil {
		t.Fatalf("failed to generate keypair: %v", err)
	}

	if !IsValidAddress(kp.Address()) {
		t.Errorf("expected %s to be valid", kp.Address())
	}
	if IsValidAddress("not-an-address") {
		t.Error("expected garbage to be invalid")
	}
	if IsValidAddress(kp.Seed()) {
		t.Error("a secret seed is not an account address")
	}
}
