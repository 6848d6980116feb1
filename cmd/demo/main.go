package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/stellar/go/keypair"

	"lumio/internal/config"
	"lumio/internal/database"
	"lumio/internal/models"
	"lumio/internal/services"
	"lumio/internal/stellar"
	"lumio/internal/vault"
)

// Walks one event through its full lifecycle against the Stellar testnet:
// create, wallet, friendbot funding, asset setup, funding round, ticket
// revenue and a payout preview. Needs a reachable Postgres and testnet
// network access.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Stellar.Network != "testnet" {
		log.Fatalf("Demo runs on testnet only, configured network is %s", cfg.Stellar.Network)
	}

	if err := database.Connect(cfg.GetDSN()); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	secretVault, err := vault.New(cfg.App.EncryptionKey)
	if err != nil {
		log.Fatalf("Failed to initialize vault: %v", err)
	}

	gateway := stellar.NewClient(cfg.Stellar)
	db := database.GetDB()

	walletService := services.NewWalletService(db, gateway, secretVault)
	eventService := services.NewEventService(db, walletService, gateway)
	investmentService := services.NewInvestmentService(db, gateway, secretVault)
	revenueService := services.NewRevenueService(db, gateway)
	distributionService := services.NewDistributionService(db, gateway, secretVault)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	organizer, err := keypair.Random()
	if err != nil {
		log.Fatalf("Failed to generate organizer keypair: %v", err)
	}

	log.Println("=== 1. Create event ===")
	description := "Demo concert financed through tokenized revenue sharing"
	event, err := eventService.CreateEvent(models.CreateEventRequest{
		Name:            "Demo Concert",
		Description:     &description,
		FundingGoal:     2500,
		TokenPrice:      10,
		RevenueSharePct: 30,
		TicketPrice:     25,
	}, organizer.Address())
	if err != nil {
		log.Fatalf("CreateEvent failed: %v", err)
	}
	log.Printf("Event %s created (status %s)", event.ID, event.Status)

	log.Println("=== 2. Initialize custodial wallet ===")
	event, err = eventService.InitializeWallet(event.ID)
	if err != nil {
		log.Fatalf("InitializeWallet failed: %v", err)
	}
	log.Printf("Wallet %s, asset code %s", *event.StellarPublicKey, *event.AssetCode)

	log.Println("=== 3. Fund wallet via Friendbot ===")
	if err := eventService.FundWallet(ctx, event.ID); err != nil {
		log.Fatalf("FundWallet failed: %v", err)
	}

	log.Println("=== 4. Configure asset and USDC trust line ===")
	setup, err := walletService.SetupEventAsset(ctx, event.ID)
	if err != nil {
		log.Fatalf("SetupEventAsset failed: %v", err)
	}
	log.Printf("Asset configured, tx %s", setup.TransactionHash)

	log.Println("=== 5. Open funding ===")
	if _, err := eventService.OpenFunding(event.ID); err != nil {
		log.Fatalf("OpenFunding failed: %v", err)
	}

	log.Println("=== 6. Build a purchase transaction for a demo investor ===")
	investor, err := keypair.Random()
	if err != nil {
		log.Fatalf("Failed to generate investor keypair: %v", err)
	}
	if err := gateway.FundTestAccount(ctx, investor.Address()); err != nil {
		log.Fatalf("Investor funding failed: %v", err)
	}
	purchase, err := investmentService.PurchaseTokens(ctx, event.ID, models.InvestRequest{
		InvestorAddress: investor.Address(),
		TokenAmount:     50,
	})
	if err != nil {
		log.Fatalf("PurchaseTokens failed: %v", err)
	}
	log.Printf("Swap envelope ready: %s tokens for %s USDC", purchase.TokenAmount, purchase.UsdcAmount)
	log.Printf("XDR (awaiting investor signature): %s", purchase.XDR)

	// The swap needs USDC on the investor side, which testnet friendbot
	// does not provide. Record the investments directly so the rest of the
	// lifecycle can be demonstrated.
	log.Println("=== 7. Simulate the funding round ===")
	for i := 0; i < 5; i++ {
		if _, err := investmentService.RecordInvestment(event.ID, models.RecordInvestmentRequest{
			InvestorAddress: investor.Address(),
			TokenAmount:     50,
			UsdcPaid:        500,
			StellarTxHash:   fmt.Sprintf("%064d", i),
		}); err != nil {
			log.Fatalf("RecordInvestment failed: %v", err)
		}
	}
	event, _ = eventService.GetEvent(event.ID)
	log.Printf("Funding round done, status %s, tokens issued %s", event.Status, event.TotalTokensIssued)

	log.Println("=== 8. Open ticket sales and record revenue ===")
	if _, err := eventService.OpenTicketSales(event.ID); err != nil {
		log.Fatalf("OpenTicketSales failed: %v", err)
	}
	for i := 0; i < 6; i++ {
		if _, err := revenueService.RecordTicketSale(event.ID, models.TicketSaleRequest{
			BuyerAddress: investor.Address(),
			UsdcPaid:     25,
		}); err != nil {
			log.Fatalf("RecordTicketSale failed: %v", err)
		}
	}
	stats, err := revenueService.Stats(event.ID)
	if err != nil {
		log.Fatalf("Stats failed: %v", err)
	}
	log.Printf("Revenue %s USDC, distributable %s, payout per token %s",
		stats.TotalRevenue, stats.DistributableTotal, stats.PayoutPerToken)

	log.Println("=== 9. Payout preview ===")
	calc, err := distributionService.CalculatePayout(ctx, event.ID)
	if err != nil {
		log.Fatalf("CalculatePayout failed: %v", err)
	}
	log.Printf("%d on-chain holders, total payout %s USDC", len(calc.Holders), calc.TotalPayout)

	log.Println("Demo complete")
}
