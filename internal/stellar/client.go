package stellar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stellar/go/network"
	"github.com/stellar/go/txnbuild"

	"lumio/internal/config"
)

// USDC anchor issuers per network.
const (
	usdcIssuerTestnet = "GBBD47IF6LWK7P7MDEVSCWR7DPUWV3NY3DTQEVFL4NAT4AQH3ZLLFLA5"
	usdcIssuerMainnet = "GA5ZSEJYB37JRC5AVCIA5MOP4RHTM335X2KGX3IHOJAPP5RE34K4KZVN"
)

// Client talks to a Horizon server over its REST API.
type Client struct {
	horizonURL   string
	friendbotURL string
	networkName  string
	httpClient   *http.Client
}

// NewClient creates a Horizon client for the configured network.
func NewClient(cfg config.StellarConfig) *Client {
	return &Client{
		horizonURL:   strings.TrimRight(cfg.HorizonURL, "/"),
		friendbotURL: cfg.FriendbotURL,
		networkName:  cfg.Network,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NetworkPassphrase returns the passphrase transactions must be signed for.
func (c *Client) NetworkPassphrase() string {
	if c.networkName == "mainnet" {
		return network.PublicNetworkPassphrase
	}
	return network.TestNetworkPassphrase
}

// USDCAsset returns the stable-currency asset for the configured network.
func (c *Client) USDCAsset() txnbuild.CreditAsset {
	if c.networkName == "mainnet" {
		return txnbuild.CreditAsset{Code: "USDC", Issuer: usdcIssuerMainnet}
	}
	return txnbuild.CreditAsset{Code: "USDC", Issuer: usdcIssuerTestnet}
}

type horizonBalance struct {
	Balance     string `json:"balance"`
	AssetType   string `json:"asset_type"`
	AssetCode   string `json:"asset_code"`
	AssetIssuer string `json:"asset_issuer"`
}

type horizonAccount struct {
	ID       string           `json:"id"`
	Sequence string           `json:"sequence"`
	Balances []horizonBalance `json:"balances"`
}

type horizonAccountsPage struct {
	Embedded struct {
		Records []horizonAccount `json:"records"`
	} `json:"_embedded"`
}

type horizonPayment struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	From            string `json:"from"`
	To              string `json:"to"`
	AssetType       string `json:"asset_type"`
	AssetCode       string `json:"asset_code"`
	AssetIssuer     string `json:"asset_issuer"`
	Amount          string `json:"amount"`
	TransactionHash string `json:"transaction_hash"`
	CreatedAt       string `json:"created_at"`
}

type horizonPaymentsPage struct {
	Embedded struct {
		Records []horizonPayment `json:"records"`
	} `json:"_embedded"`
}

type horizonSubmitResponse struct {
	Hash string `json:"hash"`
}

type horizonProblem struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Extras struct {
		ResultCodes *ResultCodes `json:"result_codes"`
	} `json:"extras"`
}

// LoadAccount fetches the current sequence number of an account.
func (c *Client) LoadAccount(ctx context.Context, accountID string) (*txnbuild.SimpleAccount, error) {
	var account horizonAccount
	if err := c.getJSON(ctx, "/accounts/"+accountID, &account); err != nil {
		return nil, err
	}

	seq, err := strconv.ParseInt(account.Sequence, 10, 64)
	if err != nil {
		return nil, NewError(CodeNetworkError, fmt.Sprintf("invalid sequence %q for account %s", account.Sequence, accountID), true)
	}

	return &txnbuild.SimpleAccount{AccountID: accountID, Sequence: seq}, nil
}

// SubmitTransaction submits a signed transaction envelope and returns the
// transaction hash. Rejections carry Horizon's result codes.
func (c *Client) SubmitTransaction(ctx context.Context, tx *txnbuild.Transaction) (string, error) {
	envelope, err := tx.Base64()
	if err != nil {
		return "", fmt.Errorf("failed to serialize transaction: %w", err)
	}

	form := url.Values{"tx": {envelope}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.horizonURL+"/transactions", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", NewError(CodeNetworkError, fmt.Sprintf("transaction submission failed: %v", err), true)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", NewError(CodeNetworkError, fmt.Sprintf("failed to read response: %v", err), true)
	}

	if resp.StatusCode != http.StatusOK {
		var problem horizonProblem
		if err := json.Unmarshal(body, &problem); err == nil && problem.Extras.ResultCodes != nil {
			return "", &Error{
				Code:        CodeTxFailed,
				Message:     fmt.Sprintf("transaction rejected: %s", problem.Title),
				Recoverable: true,
				ResultCodes: problem.Extras.ResultCodes,
			}
		}
		return "", NewError(CodeTxFailed, fmt.Sprintf("transaction rejected with status %d", resp.StatusCode), true)
	}

	var result horizonSubmitResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", NewError(CodeNetworkError, fmt.Sprintf("failed to decode submit response: %v", err), true)
	}

	return result.Hash, nil
}

// AssetHolders returns accounts holding a positive balance of the asset.
// The issuer account is excluded.
func (c *Client) AssetHolders(ctx context.Context, assetCode, issuer string) ([]AssetHolder, error) {
	path := fmt.Sprintf("/accounts?asset=%s&limit=200", url.QueryEscape(assetCode+":"+issuer))

	var page horizonAccountsPage
	if err := c.getJSON(ctx, path, &page); err != nil {
		return nil, err
	}

	holders := make([]AssetHolder, 0, len(page.Embedded.Records))
	for _, account := range page.Embedded.Records {
		if account.ID == issuer {
			continue
		}
		for _, b := range account.Balances {
			if b.AssetType == "native" || b.AssetCode != assetCode || b.AssetIssuer != issuer {
				continue
			}
			balance, err := decimal.NewFromString(b.Balance)
			if err != nil {
				log.Printf("Warning: skipping holder %s with unparseable balance %q", account.ID, b.Balance)
				continue
			}
			if balance.IsPositive() {
				holders = append(holders, AssetHolder{Address: account.ID, Balance: balance})
			}
		}
	}

	return holders, nil
}

// IncomingPayments returns recent payments received by the account,
// newest first.
func (c *Client) IncomingPayments(ctx context.Context, accountID string, limit int) ([]PaymentRecord, error) {
	path := fmt.Sprintf("/accounts/%s/payments?order=desc&limit=%d", accountID, limit)

	var page horizonPaymentsPage
	if err := c.getJSON(ctx, path, &page); err != nil {
		return nil, err
	}

	payments := make([]PaymentRecord, 0, len(page.Embedded.Records))
	for _, p := range page.Embedded.Records {
		if p.Type != "payment" || p.To != accountID {
			continue
		}
		amount, err := decimal.NewFromString(p.Amount)
		if err != nil {
			log.Printf("Warning: skipping payment %s with unparseable amount %q", p.ID, p.Amount)
			continue
		}
		createdAt, _ := time.Parse(time.RFC3339, p.CreatedAt)
		payments = append(payments, PaymentRecord{
			ID:          p.ID,
			From:        p.From,
			To:          p.To,
			AssetCode:   p.AssetCode,
			AssetIssuer: p.AssetIssuer,
			Amount:      amount,
			TxHash:      p.TransactionHash,
			CreatedAt:   createdAt,
		})
	}

	return payments, nil
}

// FundTestAccount funds an account through Friendbot. Refused outright on
// mainnet.
func (c *Client) FundTestAccount(ctx context.Context, accountID string) error {
	if c.networkName != "testnet" {
		return NewError(CodeNetworkMismatch, "friendbot is only available on the Stellar testnet", false)
	}

	fundURL := fmt.Sprintf("%s?addr=%s", c.friendbotURL, url.QueryEscape(accountID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fundURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return NewError(CodeNetworkError, fmt.Sprintf("friendbot request failed: %v", err), true)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return NewError(CodeFriendbotError, fmt.Sprintf("friendbot funding failed: %s", strings.TrimSpace(string(body))), true)
	}

	log.Printf("Friendbot funding successful for %s (%s)", accountID, time.Since(start).Round(time.Millisecond))
	return nil
}

// getJSON performs a GET against Horizon and decodes the response.
func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.horizonURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return NewError(CodeNetworkError, fmt.Sprintf("horizon request failed: %v", err), true)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return NewError(CodeNetworkError, fmt.Sprintf("failed to read response: %v", err), true)
	}

	if resp.StatusCode != http.StatusOK {
		return NewError(CodeNetworkError, fmt.Sprintf("horizon returned status %d for %s", resp.StatusCode, path), true)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return NewError(CodeNetworkError, fmt.Sprintf("failed to decode response: %v", err), true)
	}

	return nil
}
