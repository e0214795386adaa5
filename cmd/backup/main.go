package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"admindash/internal/config"
	"admindash/internal/database"
	"admindash/internal/logging"
	"admindash/internal/service"
)

func main() {
	// Define subcommands
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	importCmd := flag.NewFlagSet("import", flag.ExitOnError)

	// Export flags
	exportOutput := exportCmd.String("output", "", "Output file path (default: backup_YYYYMMDD_HHMMSS.json)")

	// Import flags
	importInput := importCmd.String("input", "", "Input file path (required)")
	importDryRun := importCmd.Bool("dry-run", false, "Validate the file and report what would be imported without writing")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// Load configuration
	cfg := config.Load()
	log := logging.New(os.Stderr, cfg.LogFormat, cfg.LogLevel)
	ctx := context.Background()

	var cmdErr error
	switch os.Args[1] {
	case "export":
		_ = exportCmd.Parse(os.Args[2:])
		cmdErr = withBackupService(ctx, cfg, log, func(s *service.BackupService) error {
			return handleExport(ctx, s, log, *exportOutput)
		})

	case "import":
		_ = importCmd.Parse(os.Args[2:])
		if *importInput == "" {
			fmt.Println("Error: -input flag is required")
			importCmd.PrintDefaults()
			os.Exit(1)
		}
		cmdErr = withBackupService(ctx, cfg, log, func(s *service.BackupService) error {
			return handleImport(ctx, s, log, *importInput, *importDryRun)
		})

	default:
		printUsage()
		os.Exit(1)
	}

	if cmdErr != nil {
		log.Error(ctx, "backup failed", "command", os.Args[1], "error", cmdErr)
		os.Exit(1)
	}
}

func withBackupService(ctx context.Context, cfg *config.Config, log logging.Logger, fn func(*service.BackupService) error) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Initialize database
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	// Run migrations to ensure schema is up to date
	if err := db.RunMigrations(ctx, log); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return fn(service.NewBackupService(db, log))
}

func handleExport(ctx context.Context, backupService *service.BackupService, log logging.Logger, outputPath string) error {
	// Generate default filename if not provided
	if outputPath == "" {
		timestamp := time.Now().Format("20060102_150405")
		outputPath = fmt.Sprintf("backup_%s.json", timestamp)
	}

	// Ensure directory exists
	dir := filepath.Dir(outputPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	log.Info(ctx, "exporting database", "output", outputPath)
	if err := backupService.Export(ctx, outputPath); err != nil {
		return err
	}

	fileInfo, err := os.Stat(outputPath)
	if err != nil {
		return err
	}
	log.Info(ctx, "export complete", "size_mb", fmt.Sprintf("%.2f", float64(fileInfo.Size())/1024/1024))
	return nil
}

func handleImport(ctx context.Context, backupService *service.BackupService, log logging.Logger, inputPath string, dryRun bool) error {
	// Check if file exists
	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		return fmt.Errorf("input file does not exist: %s", inputPath)
	}

	log.Info(ctx, "importing database", "input", inputPath, "dry_run", dryRun)
	report, err := backupService.Import(ctx, inputPath, dryRun)
	if err != nil {
		return err
	}

	log.Info(ctx, "import complete", "imported", report.Imported, "skipped", report.Skipped, "dry_run", report.DryRun)
	return nil
}

func printUsage() {
	fmt.Println("Admin Dashboard Backup Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  backup export [options]    Export users to a JSON file")
	fmt.Println("  backup import [options]    Import users from a JSON file")
	fmt.Println()
	fmt.Println("Export Options:")
	fmt.Println("  -output <file>    Output file path (default: backup_YYYYMMDD_HHMMSS.json)")
	fmt.Println()
	fmt.Println("Import Options:")
	fmt.Println("  -input <file>     Input file path (required)")
	fmt.Println("  -dry-run          Validate without writing; existing emails are always skipped")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  DATABASE_TYPE    Database type: sqlite, postgres, or mysql (default: sqlite)")
	fmt.Println("  DATABASE_PATH    SQLite database path (default: ./admindash.db)")
	fmt.Println("  DATABASE_URL     PostgreSQL or MySQL connection URL")
}
