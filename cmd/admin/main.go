package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	kms "cloud.google.com/go/kms/apiv1"

	"moneta/internal/auth"
	"moneta/internal/domain/syncer"
	"moneta/internal/infrastructure/aggregator"
	"moneta/internal/infrastructure/postgres"
	"moneta/internal/infrastructure/vault"
	"moneta/internal/shared/config"
)

const usage = `Moneta Admin CLI - Management commands for the Moneta API

Usage:
  admin <command> [options]

Commands:
  migrate             Apply database migrations
  rotate-credentials  Re-encrypt all stored access tokens with the current key material
  sync                Run a transaction sync outside the schedule
  demo-token          Mint a demo bearer token for local testing

Examples:
  admin migrate
  admin rotate-credentials
  admin sync --owner=auth0|abc123
  admin sync --all --force-full
  admin demo-token --subject=demo-user --ttl=24h
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(1)
	}

	switch command := os.Args[1]; command {
	case "migrate":
		runMigrate(os.Args[2:])
	case "rotate-credentials":
		runRotateCredentials(os.Args[2:])
	case "sync":
		runSync(os.Args[2:])
	case "demo-token":
		runDemoToken(os.Args[2:])
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		fmt.Print(usage)
		os.Exit(1)
	}
}

func openDatabase(cfg *config.Config) *postgres.DB {
	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Println("Connected to database")
	return db
}

func openVault(ctx context.Context, cfg *config.Config) *vault.Vault {
	var kmsClient vault.KMSClient
	if cfg.Vault.KMSKeyName != "" {
		client, err := kms.NewKeyManagementClient(ctx)
		if err != nil {
			log.Fatalf("Failed to initialize kms client: %v", err)
		}
		kmsClient = client
	}
	v, err := vault.New(cfg.Vault.Secret, cfg.Vault.KMSKeyName, kmsClient)
	if err != nil {
		log.Fatalf("Failed to initialize credential vault: %v", err)
	}
	return v
}

func runMigrate(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	timeoutStr := fs.String("timeout", "5m", "Timeout for the operation")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	timeout, err := time.ParseDuration(*timeoutStr)
	if err != nil {
		log.Fatalf("Invalid timeout format: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db := openDatabase(cfg)
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("Migrations applied")
}

// runRotateCredentials decrypts every stored access token and seals it
// again, so switching key material (or moving from gcm to kms) only
// needs the old and new configuration present for one run.
func runRotateCredentials(args []string) {
	fs := flag.NewFlagSet("rotate-credentials", flag.ExitOnError)
	dryRun := fs.Bool("dry-run", false, "Decrypt and report without writing anything")
	timeoutStr := fs.String("timeout", "10m", "Timeout for the operation")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	timeout, err := time.ParseDuration(*timeoutStr)
	if err != nil {
		log.Fatalf("Invalid timeout format: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db := openDatabase(cfg)
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	schema, err := postgres.NegotiateCredentialSchema(ctx, db)
	if err != nil {
		log.Fatalf("Failed to negotiate credential schema: %v", err)
	}
	credRepo := postgres.NewCredentialRepository(db, schema)
	tokenVault := openVault(ctx, cfg)

	creds, err := credRepo.ListAll(ctx)
	if err != nil {
		log.Fatalf("Failed to list credentials: %v", err)
	}

	rotated, failed := 0, 0
	for _, cred := range creds {
		plaintext, err := tokenVault.Decrypt(ctx, cred.TokenBlob)
		if err != nil {
			log.Printf("Skipping owner %s item %s: %v", cred.OwnerID, cred.ItemID, err)
			failed++
			continue
		}
		if *dryRun {
			rotated++
			continue
		}
		blob, err := tokenVault.Encrypt(ctx, plaintext)
		if err != nil {
			log.Printf("Failed to re-encrypt for owner %s item %s: %v", cred.OwnerID, cred.ItemID, err)
			failed++
			continue
		}
		if err := credRepo.UpdateTokenBlob(ctx, cred.OwnerID, cred.ItemID, blob); err != nil {
			log.Printf("Failed to store rotated blob for owner %s item %s: %v", cred.OwnerID, cred.ItemID, err)
			failed++
			continue
		}
		rotated++
	}

	log.Printf("Rotation complete: %d rotated, %d failed, %d total", rotated, failed, len(creds))
	if failed > 0 {
		os.Exit(1)
	}
}

func runSync(args []string) {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	owner := fs.String("owner", "", "Owner ID to sync")
	allOwners := fs.Bool("all", false, "Sync every owner with a linked credential")
	forceFull := fs.Bool("force-full", false, "Use the extended lookback window")
	startMonth := fs.String("start-month", "", "Sync from the given month (YYYY-MM)")
	timeoutStr := fs.String("timeout", "30m", "Timeout for the operation")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if *owner == "" && !*allOwners {
		fmt.Println("Error: must specify --owner or --all")
		fs.Usage()
		os.Exit(1)
	}

	timeout, err := time.ParseDuration(*timeoutStr)
	if err != nil {
		log.Fatalf("Invalid timeout format: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db := openDatabase(cfg)
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	schema, err := postgres.NegotiateCredentialSchema(ctx, db)
	if err != nil {
		log.Fatalf("Failed to negotiate credential schema: %v", err)
	}
	credRepo := postgres.NewCredentialRepository(db, schema)
	tokenVault := openVault(ctx, cfg)
	aggClient := aggregator.NewClient(cfg.Aggregator.BaseURL, cfg.Aggregator.ClientID, cfg.Aggregator.Secret)
	syncService := syncer.NewService(credRepo, tokenVault, aggClient, postgres.NewSyncStore(db), nil)

	opts := syncer.Options{
		ForceFullSync: *forceFull,
		StartMonth:    *startMonth,
	}

	var owners []string
	if *allOwners {
		creds, err := credRepo.ListAll(ctx)
		if err != nil {
			log.Fatalf("Failed to list credentials: %v", err)
		}
		seen := make(map[string]bool, len(creds))
		for _, cred := range creds {
			if !seen[cred.OwnerID] {
				seen[cred.OwnerID] = true
				owners = append(owners, cred.OwnerID)
			}
		}
		log.Printf("Found %d owners with linked credentials", len(owners))
	} else {
		owners = []string{*owner}
	}

	start := time.Now()
	for _, ownerID := range owners {
		result, err := syncService.Synchronize(ctx, ownerID, opts)
		if err != nil {
			log.Printf("Sync failed for owner %s: %v", ownerID, err)
			continue
		}
		fmt.Printf("\n=== Owner %s ===\n", ownerID)
		fmt.Printf("  Window:    %s to %s\n", result.From.Format("2006-01-02"), result.To.Format("2006-01-02"))
		fmt.Printf("  Items:     %d\n", result.Items)
		fmt.Printf("  Fetched:   %d\n", result.Fetched)
		fmt.Printf("  Upserted:  %d\n", result.Upserted)
	}
	log.Printf("Sync completed in %v", time.Since(start))
}

func runDemoToken(args []string) {
	fs := flag.NewFlagSet("demo-token", flag.ExitOnError)
	subject := fs.String("subject", "demo-user", "Subject claim for the token")
	email := fs.String("email", "demo@example.com", "Email claim for the token")
	name := fs.String("name", "Demo User", "Name claim for the token")
	ttlStr := fs.String("ttl", "24h", "Token lifetime")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	ttl, err := time.ParseDuration(*ttlStr)
	if err != nil {
		log.Fatalf("Invalid ttl format: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Auth.DemoSecret == "" {
		log.Fatal("AUTH_DEMO_SECRET is not configured")
	}

	token, err := auth.NewDemoToken(cfg.Auth.DemoSecret, *subject, *email, *name, ttl)
	if err != nil {
		log.Fatalf("Failed to mint token: %v", err)
	}
	fmt.Println(token)
}
