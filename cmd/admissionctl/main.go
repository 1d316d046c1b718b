package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/jmoiron/sqlx"
	"github.com/olekukonko/tablewriter"
	"go.uber.org/zap"

	"github.com/noah-isme/admission-portal-api/internal/models"
	"github.com/noah-isme/admission-portal-api/internal/repository"
	"github.com/noah-isme/admission-portal-api/internal/service"
	"github.com/noah-isme/admission-portal-api/pkg/cache"
	"github.com/noah-isme/admission-portal-api/pkg/config"
	"github.com/noah-isme/admission-portal-api/pkg/database"
	"github.com/noah-isme/admission-portal-api/pkg/logger"
)

const usage = `admissionctl manages the admission portal from the command line.

Usage:
  admissionctl kinds
  admissionctl stats -year 2025
  admissionctl import -kind religions -file religions.xlsx
  admissionctl export -kind religions -out religions.xlsx
  admissionctl create-admin -email admin@example.com -name "Registrar" -password secret123
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		color.Red("failed to load config: %v", err)
		os.Exit(1)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		color.Red("failed to init logger: %v", err)
		os.Exit(1)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cmd, args := os.Args[1], os.Args[2:]
	if cmd == "kinds" {
		printKinds()
		return
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		color.Red("failed to connect to postgres: %v", err)
		os.Exit(1)
	}
	defer db.Close()

	switch cmd {
	case "stats":
		err = runStats(ctx, db, args)
	case "import":
		err = runImport(ctx, cfg, db, logr, args)
	case "export":
		err = runExport(ctx, cfg, db, logr, args)
	case "create-admin":
		err = runCreateAdmin(ctx, db, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		color.Red("%s failed: %v", cmd, err)
		os.Exit(1)
	}
}

func printKinds() {
	color.Cyan("\n=== Master data kinds ===")
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Kind", "Table", "Label Column", "Sequence", "Public"})
	for _, kindSpec := range models.MasterDataKinds() {
		table.Append([]string{
			string(kindSpec.Kind),
			kindSpec.Table,
			kindSpec.LabelColumn,
			strconv.FormatBool(kindSpec.HasSequence),
			strconv.FormatBool(kindSpec.Public),
		})
	}
	table.Render()
}

func runStats(ctx context.Context, db *sqlx.DB, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	year := fs.Int("year", time.Now().Year(), "admission year")
	if err := fs.Parse(args); err != nil {
		return err
	}

	stats, err := repository.NewAdmissionRepository(db).Stats(ctx, *year)
	if err != nil {
		return err
	}

	color.Yellow("\nAdmission %d", *year)
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Metric", "Count"})
	table.AppendBulk([][]string{
		{"Total", strconv.Itoa(stats.Total)},
		{"Drafts", strconv.Itoa(stats.Drafts)},
		{"Payment due", strconv.Itoa(stats.PaymentDue)},
		{"Payments done", strconv.Itoa(stats.PaymentsDone)},
		{"Submitted", strconv.Itoa(stats.Submitted)},
		{"Approved", strconv.Itoa(stats.Approved)},
		{"Rejected", strconv.Itoa(stats.Rejected)},
	})
	table.Render()
	return nil
}

func masterDataService(ctx context.Context, cfg *config.Config, db *sqlx.DB, logr *zap.Logger) *service.MasterDataService {
	var cacheRepo service.CacheRepository
	if client, err := cache.NewRedis(ctx, cfg.Redis); err != nil {
		color.Yellow("redis unavailable, lookup caches will not be invalidated: %v", err)
	} else {
		cacheRepo = repository.NewCacheRepository(client, "admission")
	}
	cacheSvc := service.NewCacheService(cacheRepo, nil, cfg.Admissions.LookupCacheTTL, logr, cacheRepo != nil)
	return service.NewMasterDataService(repository.NewMasterDataRepository(db), cacheSvc, repository.NewUserRepository(db), nil, cfg.Admissions.LookupCacheTTL, logr)
}

func cliSession() *models.Session {
	return &models.Session{Role: models.RoleAdmin, FullName: "admissionctl", UserAgent: "admissionctl"}
}

func runImport(ctx context.Context, cfg *config.Config, db *sqlx.DB, logr *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	kind := fs.String("kind", "", "master data kind")
	path := fs.String("file", "", "xlsx workbook to import")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *kind == "" || *path == "" {
		return fmt.Errorf("-kind and -file are required")
	}

	file, err := os.Open(*path)
	if err != nil {
		return err
	}
	defer file.Close()

	result, err := masterDataService(ctx, cfg, db, logr).Import(ctx, cliSession(), *kind, file)
	if err != nil {
		return err
	}
	color.Green("imported %d %s", result.Imported, result.Kind)
	return nil
}

func runExport(ctx context.Context, cfg *config.Config, db *sqlx.DB, logr *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	kind := fs.String("kind", "", "master data kind")
	out := fs.String("out", "", "output path, defaults to <kind>.xlsx")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *kind == "" {
		return fmt.Errorf("-kind is required")
	}

	payload, filename, err := masterDataService(ctx, cfg, db, logr).Export(ctx, *kind)
	if err != nil {
		return err
	}
	target := *out
	if target == "" {
		target = filename
	}
	if err := os.WriteFile(target, payload, 0o644); err != nil {
		return err
	}
	color.Green("wrote %s", target)
	return nil
}

func runCreateAdmin(ctx context.Context, db *sqlx.DB, args []string) error {
	fs := flag.NewFlagSet("create-admin", flag.ExitOnError)
	email := fs.String("email", "", "login email")
	name := fs.String("name", "", "display name")
	password := fs.String("password", "", "initial password, at least 8 characters")
	if err := fs.Parse(args); err != nil {
		return err
	}
	addr := strings.ToLower(strings.TrimSpace(*email))
	if addr == "" || strings.TrimSpace(*name) == "" {
		return fmt.Errorf("-email and -name are required")
	}
	if len(*password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	hash, err := service.HashPassword(*password)
	if err != nil {
		return err
	}
	user := &models.User{
		Email:        &addr,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(*name),
		Role:         models.RoleAdmin,
		Active:       true,
	}
	if err := repository.NewUserRepository(db).Create(ctx, user); err != nil {
		return err
	}
	color.Green("created admin %s (%s)", addr, user.ID)
	return nil
}
