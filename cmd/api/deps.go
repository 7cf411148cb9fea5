package main

import (
	"context"
	"fmt"
	"log"

	kms "cloud.google.com/go/kms/apiv1"

	"moneta/internal/auth"
	"moneta/internal/domain/account"
	"moneta/internal/domain/insights"
	"moneta/internal/domain/notification"
	"moneta/internal/domain/syncer"
	"moneta/internal/domain/transaction"
	"moneta/internal/infrastructure/aggregator"
	"moneta/internal/infrastructure/firebase"
	"moneta/internal/infrastructure/postgres"
	"moneta/internal/infrastructure/vault"
	httphandlers "moneta/internal/interfaces/http"
	"moneta/internal/shared/config"
	"moneta/internal/shared/messages"
	"moneta/internal/shared/middleware"
)

// Dependencies holds all initialized application components.
type Dependencies struct {
	DB       *postgres.DB
	Verifier *auth.Verifier

	// Handlers
	SyncHandler        *httphandlers.SyncHandler
	CredentialHandler  *httphandlers.CredentialHandler
	AccountHandler     *httphandlers.AccountHandler
	TransactionHandler *httphandlers.TransactionHandler
	ChatHandler        *httphandlers.ChatHandler
	DeviceHandler      *httphandlers.DeviceHandler
	HealthHandler      *httphandlers.HealthHandler

	// Middleware state
	RateLimiter *middleware.RateLimiter

	// Shared with the scheduler
	SyncService    *syncer.Service
	CredentialRepo *postgres.CredentialRepository
	UserRepo       *postgres.UserRepository
}

// NewDependencies wires the application together.
func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}
	log.Println("Connected to database")

	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	schema, err := postgres.NegotiateCredentialSchema(ctx, db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to negotiate credential schema: %w", err)
	}

	var kmsClient vault.KMSClient
	if cfg.Vault.KMSKeyName != "" {
		client, err := kms.NewKeyManagementClient(ctx)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize kms client: %w", err)
		}
		kmsClient = client
	}
	tokenVault, err := vault.New(cfg.Vault.Secret, cfg.Vault.KMSKeyName, kmsClient)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize credential vault: %w", err)
	}

	verifier, err := auth.NewVerifier(ctx, auth.Config{
		JWKSURL:          cfg.Auth.JWKSURL,
		Audiences:        cfg.Auth.Audiences,
		Issuer:           cfg.Auth.Issuer,
		DemoSecret:       cfg.Auth.DemoSecret,
		DecryptionKeyPEM: cfg.Auth.DecryptionKeyPEM,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize token verifier: %w", err)
	}

	// Repositories
	userRepo := postgres.NewUserRepository(db)
	credentialRepo := postgres.NewCredentialRepository(db, schema)
	accountRepo := postgres.NewAccountRepository(db)
	transactionRepo := postgres.NewTransactionRepository(db)
	deviceRepo := postgres.NewDeviceRepository(db)
	syncStore := postgres.NewSyncStore(db)

	// Domain services
	accountService := account.NewService(accountRepo)
	transactionService := transaction.NewService(transactionRepo, "")

	catalog := messages.Default()
	if cfg.Messages.Path != "" {
		loaded, err := messages.Load(cfg.Messages.Path)
		if err != nil {
			log.Printf("Warning: failed to load message catalog from %s: %v", cfg.Messages.Path, err)
		} else {
			catalog = loaded
		}
	}

	var messenger notification.Messenger
	if cfg.Firebase.CredentialsFile != "" {
		fcm, err := firebase.NewClient(ctx, cfg.Firebase.CredentialsFile, deviceRepo.DeactivateToken)
		if err != nil {
			log.Printf("Warning: push notifications disabled: %v", err)
		} else {
			messenger = fcm
		}
	}
	notificationService := notification.NewService(deviceRepo, messenger, catalog)

	aggClient := aggregator.NewClient(cfg.Aggregator.BaseURL, cfg.Aggregator.ClientID, cfg.Aggregator.Secret)
	syncService := syncer.NewService(credentialRepo, tokenVault, aggClient, syncStore, notificationService)

	var generator insights.Generator
	if cfg.Insights.APIKey != "" {
		gemini, err := insights.NewGeminiGenerator(ctx, cfg.Insights.APIKey, cfg.Insights.Model)
		if err != nil {
			log.Printf("Warning: insights disabled: %v", err)
		} else {
			generator = gemini
		}
	}
	insightsService := insights.NewService(generator, transactionService)

	return &Dependencies{
		DB:                 db,
		Verifier:           verifier,
		SyncHandler:        httphandlers.NewSyncHandler(syncService),
		CredentialHandler:  httphandlers.NewCredentialHandler(aggClient, tokenVault, credentialRepo),
		AccountHandler:     httphandlers.NewAccountHandler(accountService),
		TransactionHandler: httphandlers.NewTransactionHandler(transactionService),
		ChatHandler:        httphandlers.NewChatHandler(insightsService),
		DeviceHandler:      httphandlers.NewDeviceHandler(notificationService),
		HealthHandler:      httphandlers.NewHealthHandler(db),
		RateLimiter:        middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateBurst),
		SyncService:        syncService,
		CredentialRepo:     credentialRepo,
		UserRepo:           userRepo,
	}, nil
}

// Close releases all resources held by dependencies.
func (d *Dependencies) Close() {
	if d.Verifier != nil {
		d.Verifier.Close()
	}
	if d.DB != nil {
		d.DB.Close()
	}
}
