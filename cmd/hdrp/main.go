// Command hdrp runs the hierarchical deep research pipeline, either for a
// single query or as an HTTP service.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hdrp/internal/config"
	"hdrp/internal/pipeline"
	"hdrp/internal/server"
)

var (
	logger *zap.Logger

	verbose    bool
	configPath string

	query    string
	provider string
	output   string
	runID    string

	addr string
)

var rootCmd = &cobra.Command{
	Use:   "hdrp",
	Short: "Hierarchical deep research planner",
	Long: `hdrp decomposes a research query into a DAG of researcher, critic and
synthesiser nodes, executes it on a worker pool, verifies every extracted
claim, and writes an auditable report bundle.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; environment wins over file config either way.
		godotenv.Load()

		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logger.Sync()
		}
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one research query",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if output != "" {
			cfg.Run.ArtifactsDir = output
		}

		p := pipeline.New(cfg, logger)
		resp := p.Execute(context.Background(), pipeline.ExecuteRequest{
			Query:    query,
			Provider: provider,
			RunID:    runID,
		})

		if !resp.Success {
			color.Red("run %s failed: %s", resp.RunID, resp.ErrorMessage)
			return fmt.Errorf("run failed: %s", resp.ErrorMessage)
		}

		fmt.Println(resp.Report)
		color.Green("run %s succeeded", resp.RunID)
		color.Cyan("bundle: %s", cfg.Run.ArtifactsDir+"/"+resp.RunID)
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the pipeline over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		p := pipeline.New(cfg, logger)
		return server.New(p, logger).Run(addr)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "hdrp.yaml", "Path to config file")

	runCmd.Flags().StringVarP(&query, "query", "q", "", "Research query (required)")
	runCmd.Flags().StringVarP(&provider, "provider", "p", "", "Search provider: simulated, google or tavily")
	runCmd.Flags().StringVarP(&output, "output", "o", "", "Artifacts directory (default from config)")
	runCmd.Flags().StringVar(&runID, "run-id", "", "Run id (default: generated)")
	runCmd.MarkFlagRequired("query")

	serveCmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
