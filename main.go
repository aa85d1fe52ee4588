package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/giygas/marchart-api/config"
	"github.com/giygas/marchart-api/data"
	"github.com/giygas/marchart-api/dischargeparser"
	"github.com/giygas/marchart-api/handlers"
	"github.com/giygas/marchart-api/health"
	"github.com/giygas/marchart-api/instructions"
	"github.com/giygas/marchart-api/labels"
	"github.com/giygas/marchart-api/leaflets"
	"github.com/giygas/marchart-api/logging"
	"github.com/giygas/marchart-api/scheduler"
	"github.com/giygas/marchart-api/server"
	"github.com/giygas/marchart-api/validation"
)

const logDir = "logs"

func main() {
	rootCmd := &cobra.Command{
		Use:   "marchart-api",
		Short: "MAR chart medication service",
		// Running without a subcommand starts the server
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(extractCmd())
	rootCmd.AddCommand(labelsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func extractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract <letter-file>",
		Short: "Extract discharge medications from a letter and print them as JSON",
		Long:  "Reads a discharge letter (use - for stdin) and prints the medications found in its discharge section.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			withLabels, _ := cmd.Flags().GetBool("labels")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			initQuietLogging(cfg)

			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open letter: %w", err)
				}
				defer f.Close()
				in = f
			}

			text, err := dischargeparser.ReadLetter(in, cfg.MaxLetterSize)
			if err != nil {
				return err
			}

			var labeler *labels.Labeler
			if withLabels {
				rd, err := labels.NewLoader(cfg.ReferenceDataDir).LoadReferenceData()
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
				}
				labeler = labels.NewLabeler(rd, true)
			}

			results := handlers.BuildResults(dischargeparser.Extract(text), labeler)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(handlers.ExtractResponse{
				Medications:   results,
				Count:         len(results),
				LabelsEnabled: withLabels,
			})
		},
	}
	cmd.Flags().Bool("labels", false, "Attach BNF labels from REFERENCE_DATA_DIR")
	return cmd
}

func labelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "labels",
		Short: "Load the label reference data and report what was found",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			form, _ := cmd.Flags().GetString("form")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			initQuietLogging(cfg)

			rd, loadErr := labels.NewLoader(cfg.ReferenceDataDir).LoadReferenceData()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Reference data: %s\n", cfg.ReferenceDataDir)
			fmt.Fprintf(out, "%-26s %-8s %s\n", "TABLE", "LOADED", "ENTRIES")
			fmt.Fprintf(out, "%-26s %-8t %d\n", labels.LabelsFile, rd.State.Labels, len(rd.Labels))
			fmt.Fprintf(out, "%-26s %-8t %d\n", labels.DrugFormulationsFile, rd.State.DrugFormulations, len(rd.Formulations))
			fmt.Fprintf(out, "%-26s %-8t %d\n", labels.DrugAliasesFile, rd.State.DrugAliases, len(rd.DrugAliases))
			fmt.Fprintf(out, "%-26s %-8t %d\n", labels.FormulationAliasesFile, rd.State.FormulationAliases, len(rd.FormulationAliases))

			if name != "" {
				labeler := labels.NewLabeler(rd, true)
				numbers := labeler.LabelsFor(labels.Query{Name: name, Form: form})
				fmt.Fprintf(out, "\n%s (%s): %v\n", name, form, numbers)
				for _, text := range labeler.LabelTexts(numbers) {
					fmt.Fprintf(out, "  - %s\n", text)
				}
			}

			if loadErr != nil && !rd.IsDataLoaded() {
				return fmt.Errorf("reference data not usable: %w", loadErr)
			}
			return nil
		},
	}
	cmd.Flags().String("name", "", "Medication name to match")
	cmd.Flags().String("form", "", "Formulation of the medication")
	return cmd
}

// loadConfig reads .env, from the working directory or next to the executable
func loadConfig() (*config.Config, error) {
	if err := godotenv.Load(); err != nil {
		if ex, exErr := os.Executable(); exErr == nil {
			_ = godotenv.Load(filepath.Join(filepath.Dir(ex), ".env"))
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// initQuietLogging keeps stdout for command output, only errors reach the console
func initQuietLogging(cfg *config.Config) {
	logging.InitLoggerWithEnvironment("", config.EnvTest, cfg.LogLevel, cfg.LogRetentionWeeks, cfg.MaxLogFileSize)
}

func runServer() error {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}

	logging.InitLoggerWithEnvironment(logDir, cfg.Env, cfg.LogLevel, cfg.LogRetentionWeeks, cfg.MaxLogFileSize)
	defer logging.Close()

	logging.Info("Configuration loaded",
		"env", cfg.Env.String(),
		"labels_enabled", cfg.LabelsEnabled,
		"reference_data_dir", cfg.ReferenceDataDir,
	)

	dataContainer := data.NewDataContainer()
	dataContainer.SetServerStartTime(time.Now())

	instructionStore := instructions.NewStore(cfg.InstructionsFile, cfg.BackupDir)
	if err := instructionStore.Load(); err != nil {
		logging.Error("Failed to load instructions", "error", err)
		return err
	}

	loader := labels.NewLoader(cfg.ReferenceDataDir)
	sched := scheduler.NewScheduler(dataContainer, loader, instructionStore, scheduler.Options{
		RequireData:     cfg.LabelsEnabled,
		BackupRetention: time.Duration(cfg.BackupRetentionDays) * 24 * time.Hour,
	})
	if err := sched.Start(); err != nil {
		logging.Error("Failed to start scheduler", "error", err)
		return err
	}
	defer sched.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.WatchReferenceData {
		watcher := scheduler.NewWatcher(loader.Dir(), sched)
		go func() {
			if err := watcher.Run(ctx); err != nil {
				logging.Warn("Reference data watcher stopped", "error", err)
			}
		}()
	}

	handler := handlers.NewHTTPHandler(
		dataContainer,
		dischargeparser.NewParser(),
		validation.NewInputValidator(),
		instructionStore,
		health.NewHealthChecker(dataContainer, instructionStore, cfg.LabelsEnabled),
		leaflets.NewLibrary(cfg.LeafletDir),
		handlers.Options{LabelsEnabled: cfg.LabelsEnabled, MaxLetterSize: cfg.MaxLetterSize},
	)
	srv := server.NewServer(cfg, handler)

	// Channel to listen for interrupt signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-quit:
	case err := <-serverErr:
		logging.Error("Server failed to start", "error", err)
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	return srv.Shutdown(shutdownCtx)
}
