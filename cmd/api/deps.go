package main

import (
	"context"
	"log"

	"github.com/shopspring/decimal"

	"sumarte/internal/domain/budget"
	"sumarte/internal/domain/evidence"
	"sumarte/internal/domain/rendition"
	"sumarte/internal/domain/transaction"
	"sumarte/internal/infrastructure/postgres"
	"sumarte/internal/shared/config"
)

// Dependencies holds all initialized application components.
type Dependencies struct {
	DB *postgres.DB

	// Repositories
	OrganizationRepo *postgres.OrganizationRepository
	ProjectRepo      *postgres.ProjectRepository
	ProviderRepo     *postgres.ProviderRepository
	BudgetRepo       *postgres.BudgetRepository
	TransactionRepo  *postgres.TransactionRepository
	EvidenceRepo     *postgres.EvidenceRepository
	AuditRepo        *postgres.AuditRepository

	// Services
	BudgetService      *budget.Service
	TransactionService *transaction.Service
	EvidenceService    *evidence.Service
	RenditionService   *rendition.Service
}

// NewDependencies initializes all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}
	log.Println("Connected to database")

	if err := postgres.EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	txm := postgres.NewTxManager(db)

	orgRepo := postgres.NewOrganizationRepository(db)
	projectRepo := postgres.NewProjectRepository(db)
	providerRepo := postgres.NewProviderRepository(db)
	budgetRepo := postgres.NewBudgetRepository(db)
	transactionRepo := postgres.NewTransactionRepository(db)
	evidenceRepo := postgres.NewEvidenceRepository(db)
	auditRepo := postgres.NewAuditRepository(db)

	rules := transaction.Rules{
		EnforceCategoryMatch:  cfg.Rules.EnforceCategoryMatch,
		RequireReconciliation: cfg.Rules.RequireReconciliation,
		MaxAmount:             decimal.NewFromInt(cfg.Rules.MaxAmount),
	}

	budgetService := budget.NewService(budgetRepo, projectRepo)
	transactionService := transaction.NewService(txm, transactionRepo, projectRepo, budgetService, auditRepo, rules)
	evidenceService := evidence.NewService(evidenceRepo)
	renditionService := rendition.NewService(txm, projectRepo, transactionRepo, evidenceRepo)

	return &Dependencies{
		DB:                 db,
		OrganizationRepo:   orgRepo,
		ProjectRepo:        projectRepo,
		ProviderRepo:       providerRepo,
		BudgetRepo:         budgetRepo,
		TransactionRepo:    transactionRepo,
		EvidenceRepo:       evidenceRepo,
		AuditRepo:          auditRepo,
		BudgetService:      budgetService,
		TransactionService: transactionService,
		EvidenceService:    evidenceService,
		RenditionService:   renditionService,
	}, nil
}
