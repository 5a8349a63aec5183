package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"sumarte/internal/domain/budget"
	"sumarte/internal/domain/evidence"
	"sumarte/internal/domain/project"
	"sumarte/internal/domain/provider"
	"sumarte/internal/domain/rendition"
	"sumarte/internal/domain/transaction"
	"sumarte/internal/domain/user"
	"sumarte/internal/infrastructure/postgres"
	"sumarte/internal/shared/auth"
	"sumarte/internal/shared/config"
)

const usage = `Sumarte Admin CLI - Management commands for the Sumarte ledger

Usage:
  admin <command> [options]

Commands:
  seed              Load a demo organization with a project, budget and transactions
  rendition-audit   Run the pre-closure integrity audit on a project
  spend-report      Print the per-item execution breakdown for a project

Examples:
  # Load the demo data set
  admin seed

  # Audit a project before closing it
  admin rendition-audit --project-id=1

  # Audit and, when clean, close the project
  admin rendition-audit --project-id=1 --close --user-id=2

  # Show what each budget item has executed
  admin spend-report --project-id=1
`

func main() {
	if len(os.Args) < 2 {
		fmt.Printf("%s\n", usage)
		os.Exit(1)
	}

	// A missing .env is fine; the environment may carry everything.
	_ = godotenv.Load()

	command := os.Args[1]

	switch command {
	case "seed":
		runSeed(os.Args[2:])
	case "rendition-audit":
		runRenditionAudit(os.Args[2:])
	case "spend-report":
		runSpendReport(os.Args[2:])
	case "help", "-h", "--help":
		fmt.Printf("%s\n", usage)
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		fmt.Printf("%s\n", usage)
		os.Exit(1)
	}
}

// deps bundles what every command needs. Unlike the API server the
// admin tool connects lazily per command, so failures surface next to
// the command that caused them.
type deps struct {
	db       *postgres.DB
	users    *postgres.UserRepository
	orgs     *postgres.OrganizationRepository
	projects *postgres.ProjectRepository
	provs    *postgres.ProviderRepository
	budgets  *budget.Service
	budgetRp *postgres.BudgetRepository
	txns     *transaction.Service
	evid     *evidence.Service
	rend     *rendition.Service
}

func connect(ctx context.Context) *deps {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Println("Connected to database")

	if err := postgres.EnsureSchema(ctx, db); err != nil {
		log.Fatalf("Failed to ensure schema: %v", err)
	}

	txm := postgres.NewTxManager(db)
	projectRepo := postgres.NewProjectRepository(db)
	budgetRepo := postgres.NewBudgetRepository(db)
	txnRepo := postgres.NewTransactionRepository(db)
	evidenceRepo := postgres.NewEvidenceRepository(db)
	auditRepo := postgres.NewAuditRepository(db)

	rules := transaction.Rules{
		EnforceCategoryMatch:  cfg.Rules.EnforceCategoryMatch,
		RequireReconciliation: cfg.Rules.RequireReconciliation,
		MaxAmount:             decimal.NewFromInt(cfg.Rules.MaxAmount),
	}

	budgetService := budget.NewService(budgetRepo, projectRepo)

	return &deps{
		db:       db,
		users:    postgres.NewUserRepository(db),
		orgs:     postgres.NewOrganizationRepository(db),
		projects: projectRepo,
		provs:    postgres.NewProviderRepository(db),
		budgets:  budgetService,
		budgetRp: budgetRepo,
		txns:     transaction.NewService(txm, txnRepo, projectRepo, budgetService, auditRepo, rules),
		evid:     evidence.NewService(evidenceRepo),
		rend:     rendition.NewService(txm, projectRepo, txnRepo, evidenceRepo),
	}
}

func runSeed(args []string) {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	timeoutStr := fs.String("timeout", "2m", "Timeout for the operation (e.g., 30s, 5m)")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	timeout, err := time.ParseDuration(*timeoutStr)
	if err != nil {
		log.Fatalf("Invalid timeout format: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	d := connect(ctx)
	defer d.db.Close()

	if existing, err := d.orgs.GetByTaxID(ctx, "65.432.100-7"); err != nil {
		log.Fatalf("Seed failed: %v", err)
	} else if existing != nil {
		log.Println("Demo organization already present, nothing to do")
		return
	}

	org, err := d.orgs.Create(ctx, project.CreateOrganizationParams{
		Name:              "Centro Cultural La Octava",
		TaxID:             "65.432.100-7",
		SubscriptionPlan:  "standard",
		SubscriptionState: "active",
		SubscribedSince:   time.Now(),
	})
	if err != nil {
		log.Fatalf("Seed failed: %v", err)
	}

	registrar := seedUser(ctx, d, "maria.lopez", "demo-registrar", org.ID)
	approver := seedUser(ctx, d, "jorge.salas", "demo-approver", org.ID)

	proj, err := d.projects.Create(ctx, project.CreateParams{
		OrganizationID: org.ID,
		Name:           "Festival de Teatro Comunitario 2026",
		StartDate:      time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:        time.Date(2026, 12, 15, 0, 0, 0, 0, time.UTC),
		TotalBudget:    decimal.NewFromInt(5_000_000),
		State:          project.StateActive,
	})
	if err != nil {
		log.Fatalf("Seed failed: %v", err)
	}

	services := "servicios"
	honorarios, err := d.budgetRp.CreateItem(ctx, budget.CreateItemParams{
		ProjectID: proj.ID,
		Name:      "Honorarios",
		Assigned:  decimal.NewFromInt(2_500_000),
		Category:  &services,
	})
	if err != nil {
		log.Fatalf("Seed failed: %v", err)
	}
	produccion, err := d.budgetRp.CreateItem(ctx, budget.CreateItemParams{
		ProjectID: proj.ID,
		Name:      "Produccion",
		Assigned:  decimal.NewFromInt(1_800_000),
	})
	if err != nil {
		log.Fatalf("Seed failed: %v", err)
	}
	escenografia, err := d.budgetRp.CreateSubitem(ctx, budget.CreateSubitemParams{
		ItemID:   produccion.ID,
		Name:     "Escenografia",
		Assigned: decimal.NewFromInt(800_000),
	})
	if err != nil {
		log.Fatalf("Seed failed: %v", err)
	}

	carpinteria, err := d.provs.Create(ctx, provider.CreateParams{
		Name:  "Carpinteria Teatral Ltda",
		TaxID: "76.123.456-0",
		Email: "contacto@carpinteriateatral.cl",
	})
	if err != nil {
		log.Fatalf("Seed failed: %v", err)
	}
	directora, err := d.provs.Create(ctx, provider.CreateParams{
		Name:  "Ana Riquelme",
		TaxID: "12.345.678-9",
	})
	if err != nil {
		log.Fatalf("Seed failed: %v", err)
	}

	expense, err := d.txns.Create(ctx, transaction.Draft{
		ProjectID:        proj.ID,
		ProviderID:       carpinteria.ID,
		Amount:           decimal.NewFromInt(450_000),
		RegistrationDate: time.Now().AddDate(0, 0, -7),
		DocumentNumber:   "FAC-2026-0017",
		DocumentType:     transaction.DocElectronicInvoice,
		Kind:             transaction.KindExpense,
		SubitemID:        &escenografia.ID,
	}, registrar.ID)
	if err != nil {
		log.Fatalf("Seed failed: %v", err)
	}

	ev, err := d.evid.Register(ctx, evidence.CreateParams{
		ProjectID:  proj.ID,
		Name:       "FAC-2026-0017.pdf",
		MimeType:   "application/pdf",
		UploadedBy: &registrar.ID,
	})
	if err != nil {
		log.Fatalf("Seed failed: %v", err)
	}
	if err := d.evid.Attach(ctx, expense.ID, ev.ID); err != nil {
		log.Fatalf("Seed failed: %v", err)
	}

	if _, err := d.txns.Approve(ctx, expense.ID, approver.ID); err != nil {
		log.Fatalf("Seed failed: %v", err)
	}

	fees, err := d.txns.Create(ctx, transaction.Draft{
		ProjectID:        proj.ID,
		ProviderID:       directora.ID,
		Amount:           decimal.NewFromInt(600_000),
		RegistrationDate: time.Now().AddDate(0, 0, -3),
		DocumentNumber:   "BH-0042",
		DocumentType:     transaction.DocFeeReceipt,
		Kind:             transaction.KindExpense,
		ItemID:           &honorarios.ID,
		ExpenseCategory:  &services,
	}, registrar.ID)
	if err != nil {
		log.Fatalf("Seed failed: %v", err)
	}

	log.Printf("Seeded organization %d, project %d", org.ID, proj.ID)
	log.Printf("  users: %s (id %d), %s (id %d)", registrar.Username, registrar.ID, approver.Username, approver.ID)
	log.Printf("  approved expense %s, pending expense %s", expense.ID, fees.ID)
}

func seedUser(ctx context.Context, d *deps, username, password string, orgID int64) *user.User {
	hash, err := auth.HashPassword(password)
	if err != nil {
		log.Fatalf("Seed failed: %v", err)
	}
	u, err := d.users.Create(ctx, user.CreateParams{
		Username:       username,
		PasswordHash:   hash,
		OrganizationID: &orgID,
	})
	if err != nil {
		log.Fatalf("Seed failed: %v", err)
	}
	return u
}

func runRenditionAudit(args []string) {
	fs := flag.NewFlagSet("rendition-audit", flag.ExitOnError)
	projectID := fs.Int64("project-id", 0, "Project to audit")
	closeProject := fs.Bool("close", false, "Close the project when the audit is clean")
	userID := fs.Int64("user-id", 0, "Acting user id (required with --close)")
	timeoutStr := fs.String("timeout", "2m", "Timeout for the operation (e.g., 30s, 5m)")

	fs.Usage = func() {
		fmt.Println("Usage: admin rendition-audit [options]")
		fmt.Println("\nOptions:")
		fs.PrintDefaults()
		fmt.Println("\nExamples:")
		fmt.Println("  admin rendition-audit --project-id=1")
		fmt.Println("  admin rendition-audit --project-id=1 --close --user-id=2")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if *projectID == 0 {
		fmt.Println("Error: must specify --project-id")
		fs.Usage()
		os.Exit(1)
	}
	if *closeProject && *userID == 0 {
		fmt.Println("Error: --close requires --user-id")
		fs.Usage()
		os.Exit(1)
	}

	timeout, err := time.ParseDuration(*timeoutStr)
	if err != nil {
		log.Fatalf("Invalid timeout format: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	d := connect(ctx)
	defer d.db.Close()

	result, err := d.rend.PreClose(ctx, *projectID)
	if err != nil {
		log.Fatalf("Audit failed: %v", err)
	}
	printAudit(*projectID, result)

	if !*closeProject {
		return
	}
	if !result.Valid {
		log.Fatal("Project cannot be closed while the audit reports errors")
	}

	p, err := d.rend.Close(ctx, *projectID, *userID)
	if err != nil {
		log.Fatalf("Close failed: %v", err)
	}
	log.Printf("Project %d closed (state %s)", p.ID, p.State)
}

func printAudit(projectID int64, result *rendition.Result) {
	fmt.Printf("\n=== Project %d ===\n", projectID)
	if result.Valid {
		fmt.Println("  Audit: clean, ready for closure")
	} else {
		fmt.Println("  Audit: closure blocked")
	}
	for _, e := range result.Errors {
		fmt.Printf("  ERROR:   %s\n", e)
	}
	for _, w := range result.Warnings {
		fmt.Printf("  WARNING: %s\n", w)
	}
}

func runSpendReport(args []string) {
	fs := flag.NewFlagSet("spend-report", flag.ExitOnError)
	projectID := fs.Int64("project-id", 0, "Project to report on")
	timeoutStr := fs.String("timeout", "2m", "Timeout for the operation (e.g., 30s, 5m)")

	fs.Usage = func() {
		fmt.Println("Usage: admin spend-report [options]")
		fmt.Println("\nOptions:")
		fs.PrintDefaults()
		fmt.Println("\nExamples:")
		fmt.Println("  admin spend-report --project-id=1")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if *projectID == 0 {
		fmt.Println("Error: must specify --project-id")
		fs.Usage()
		os.Exit(1)
	}

	timeout, err := time.ParseDuration(*timeoutStr)
	if err != nil {
		log.Fatalf("Invalid timeout format: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	d := connect(ctx)
	defer d.db.Close()

	metrics, err := d.budgets.ProjectMetrics(ctx, *projectID)
	if err != nil {
		log.Fatalf("Report failed: %v", err)
	}
	spend, err := d.budgets.SpendByItem(ctx, *projectID)
	if err != nil {
		log.Fatalf("Report failed: %v", err)
	}

	fmt.Printf("\n=== Project %d ===\n", *projectID)
	fmt.Printf("  Total budget: %s\n", metrics.TotalBudget.StringFixed(2))
	fmt.Printf("  Executed:     %s (%.2f%%)\n", metrics.Executed.StringFixed(2), metrics.PercentExecuted)
	fmt.Printf("  Available:    %s\n", metrics.Available.StringFixed(2))
	fmt.Printf("  Items:        %d (%d with balance)\n\n", metrics.ItemCount, metrics.ItemsWithBalance)

	for _, item := range spend {
		fmt.Printf("  %-24s assigned %14s  executed %14s  balance %14s  (%d approved)\n",
			item.Name,
			item.Assigned.StringFixed(2),
			item.Executed.StringFixed(2),
			item.Balance.StringFixed(2),
			item.TransactionCount,
		)
	}
}
