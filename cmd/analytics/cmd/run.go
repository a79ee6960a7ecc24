package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"finance-alignment-engine/cmd/analytics/config"
	"finance-alignment-engine/internal/engine"
	"finance-alignment-engine/internal/reporter"
	"finance-alignment-engine/internal/store"
	"finance-alignment-engine/pkg/logger"
)

// Flags for the run command
var (
	ownerUID         string
	dbPath           string
	transactionsFile string
	potsFile         string
	goalsFile        string
	budgetFile       string
	outputFormat     string
	outputFile       string
	logLevel         string
	topListSize      int
	pendingQueueSize int
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the analytics pipeline for one owner",
	Long: `Run fetches the owner's transactions, pots, goals, and budget
configuration from the document store, aggregates and aligns them, persists
the two summary documents, and prints a report.

Seed-file flags replace the corresponding stored collection before the run,
which makes one-shot analysis of exported JSON files possible.

Examples:
  # Run against previously seeded data
  analytics run --owner user-1

  # Seed collections from JSON exports, then run
  analytics run --owner user-1 \
    --transactions tx.json --pots pots.json --goals goals.json --budget budget.json

  # Machine-readable output to a file
  analytics run --owner user-1 --output-format json --output-file report.json`,

	PreRunE: validateRunFlags,
	RunE:    runAnalytics,
}

func init() {
	rootCmd.AddCommand(runCmd)

	// Required flags
	runCmd.Flags().StringVarP(&ownerUID, "owner", "u", "", "owner identifier the run is scoped to (required)")

	// Store flags
	runCmd.Flags().StringVar(&dbPath, "db", "analytics.db", "path to the SQLite document store")

	// Seed-file flags
	runCmd.Flags().StringVar(&transactionsFile, "transactions", "", "JSON file replacing the owner's transaction collection")
	runCmd.Flags().StringVar(&potsFile, "pots", "", "JSON file replacing the owner's pot collection")
	runCmd.Flags().StringVar(&goalsFile, "goals", "", "JSON file replacing the owner's goal collection")
	runCmd.Flags().StringVar(&budgetFile, "budget", "", "JSON file replacing the owner's budget configuration")

	// Output flags
	runCmd.Flags().StringVarP(&outputFormat, "output-format", "f", "console", "output format: console, json, csv")
	runCmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "output file path (default: stdout)")

	// Tuning flags
	runCmd.Flags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	runCmd.Flags().IntVar(&topListSize, "top-list-size", 0, "override for category/merchant list size")
	runCmd.Flags().IntVar(&pendingQueueSize, "pending-queue-size", 0, "override for the pending review queue size")

	runCmd.MarkFlagRequired("owner")

	viper.BindPFlag("owner", runCmd.Flags().Lookup("owner"))
	viper.BindPFlag("db", runCmd.Flags().Lookup("db"))
	viper.BindPFlag("output-format", runCmd.Flags().Lookup("output-format"))
	viper.BindPFlag("output-file", runCmd.Flags().Lookup("output-file"))
	viper.BindPFlag("log-level", runCmd.Flags().Lookup("log-level"))
}

func validateRunFlags(cmd *cobra.Command, args []string) error {
	// Viper values win so config files and env vars can supply them.
	if v := viper.GetString("owner"); v != "" {
		ownerUID = v
	}
	if v := viper.GetString("db"); v != "" {
		dbPath = v
	}
	outputFormat = viper.GetString("output-format")
	outputFile = viper.GetString("output-file")
	logLevel = viper.GetString("log-level")

	if ownerUID == "" {
		return fmt.Errorf("owner is required")
	}

	if !reporter.OutputFormat(outputFormat).IsValid() {
		return fmt.Errorf("invalid output format '%s'. Valid formats: console, json, csv", outputFormat)
	}

	for _, seed := range []struct {
		path string
		name string
	}{
		{transactionsFile, "transactions file"},
		{potsFile, "pots file"},
		{goalsFile, "goals file"},
		{budgetFile, "budget file"},
	} {
		if seed.path == "" {
			continue
		}
		if err := validateFileExists(seed.path, seed.name); err != nil {
			return err
		}
	}

	if outputFile != "" {
		dir := filepath.Dir(outputFile)
		if dir != "." {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return fmt.Errorf("output directory does not exist: %s", dir)
			}
		}
	}

	return nil
}

func validateFileExists(filePath, description string) error {
	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s does not exist: %s", description, filePath)
	}
	if err != nil {
		return fmt.Errorf("error accessing %s: %w", description, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, expected a file: %s", description, filePath)
	}
	return nil
}

func runAnalytics(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	loggerConfig := config.CreateLoggerConfig(logLevel, viper.GetBool("verbose"))
	log, err := logger.NewLogger(loggerConfig)
	if err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}
	logger.SetGlobalLogger(log)

	if err := run(ctx); err != nil {
		handler := NewCLIErrorHandler()
		os.Exit(handler.HandleError(err))
	}
	return nil
}

func run(ctx context.Context) error {
	documentStore, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer documentStore.Close()

	if err := seedCollections(ctx, documentStore); err != nil {
		return err
	}

	eng, err := engine.NewEngine(documentStore, config.CreateEngineConfig(topListSize, pendingQueueSize))
	if err != nil {
		return err
	}

	summary, alignment, err := eng.Run(ctx, ownerUID)
	if err != nil {
		return err
	}

	reportGenerator, err := reporter.NewReportGenerator(config.CreateReportConfig(outputFormat))
	if err != nil {
		return err
	}

	output := os.Stdout
	if outputFile != "" {
		output, err = os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer output.Close()
	}

	if err := reportGenerator.GenerateReport(summary, alignment, output); err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}

	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "\nAnalytics run completed for %s.\n", ownerUID)
		fmt.Fprintf(os.Stderr, "Net cashflow: %s %s. Pending classification: %d.\n",
			summary.NetCashflow.StringFixed(2), summary.Currency, summary.PendingCount)
		fmt.Fprintf(os.Stderr, "Goals: %d across %d themes.\n",
			len(alignment.Goals), len(alignment.Themes))
	}

	return nil
}

// seedCollections replaces stored collections from any seed files supplied
// on the command line.
func seedCollections(ctx context.Context, documentStore *store.DocumentStore) error {
	seeds := []struct {
		path       string
		collection string
	}{
		{transactionsFile, store.CollectionTransactions},
		{potsFile, store.CollectionPots},
		{goalsFile, store.CollectionGoals},
		{budgetFile, store.CollectionBudgetConfig},
	}

	for _, seed := range seeds {
		if seed.path == "" {
			continue
		}
		stats, err := documentStore.LoadCollectionFile(ctx, ownerUID, seed.collection, seed.path)
		if err != nil {
			return err
		}
		if viper.GetBool("verbose") {
			fmt.Fprintf(os.Stderr, "Seeded %s from %s: %d loaded, %d skipped\n",
				seed.collection, seed.path, stats.Loaded, stats.Skipped)
		}
	}
	return nil
}
