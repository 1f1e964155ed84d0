package main

import (
	"log"

	"fintrack/internal/credentials"
	"fintrack/internal/infrastructure/postgres"
	httphandlers "fintrack/internal/interfaces/http"
	"fintrack/internal/shared/config"
	"fintrack/internal/sync"
	"fintrack/internal/truelayer"
)

// Dependencies holds all initialized application components.
type Dependencies struct {
	DB *postgres.DB

	// TrueLayer
	Client *truelayer.Client

	// Handlers
	ConnectHandler *httphandlers.ConnectHandler
	APIHandler     *httphandlers.APIHandler

	// Background sync
	Scheduler *sync.Scheduler

	// Repositories (for startup discovery)
	ProviderRepo *postgres.ProviderRepository
}

// NewDependencies initializes all application dependencies.
func NewDependencies(cfg *config.Config) (*Dependencies, error) {
	// Connect to database
	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}
	log.Println("Connected to database")

	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}

	// Initialize repositories
	providerRepo := postgres.NewProviderRepository(db)
	accountRepo := postgres.NewAccountRepository(db)
	transactionRepo := postgres.NewTransactionRepository(db)

	// Initialize TrueLayer client with the token broker as its token source
	broker := credentials.NewBroker(providerRepo, accountRepo)

	env := truelayer.EnvLive
	if cfg.TrueLayer.UseSandbox {
		env = truelayer.EnvSandbox
	}
	client := truelayer.NewClient(truelayer.Config{
		ClientID:     cfg.TrueLayer.ClientID,
		ClientSecret: cfg.TrueLayer.ClientSecret,
		Env:          env,
	}, broker)

	// Initialize sync engine and scheduler
	engine := sync.NewEngine(accountRepo, transactionRepo, client)
	scheduler := sync.NewScheduler(engine, cfg.Sync.Interval)

	// Initialize handlers
	connectHandler := httphandlers.NewConnectHandler(client, providerRepo, accountRepo, cfg.TrueLayer.CallbackURL)
	apiHandler := httphandlers.NewAPIHandler(client, providerRepo, accountRepo, transactionRepo)

	return &Dependencies{
		DB:             db,
		Client:         client,
		ConnectHandler: connectHandler,
		APIHandler:     apiHandler,
		Scheduler:      scheduler,
		ProviderRepo:   providerRepo,
	}, nil
}

// Close releases all resources held by dependencies.
func (d *Dependencies) Close() {
	if d.DB != nil {
		d.DB.Close()
	}
}
