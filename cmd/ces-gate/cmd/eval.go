package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	httpadapter "github.com/odisys/ces-gate/internal/adapter/inbound/http"
	"github.com/odisys/ces-gate/internal/config"
	"github.com/odisys/ces-gate/internal/domain/ces"
	"github.com/odisys/ces-gate/internal/service"
)

var (
	evalUserID string
	evalStock  int
)

var evalCmd = &cobra.Command{
	Use:   "eval <input>",
	Short: "Run one input through the pipeline and print the result",
	Long: `Run a single input through classify, draft, and evaluate, then print
the full result as JSON. Useful for testing a constitution before serving.

Examples:
  ces-gate eval "quiero hacer campaña urgente, quedan pocos" --stock 50
  ces-gate eval "no me gusta, cancelar"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEval,
}

func init() {
	evalCmd.Flags().StringVar(&evalUserID, "user", "cli", "user id recorded in the verdict")
	evalCmd.Flags().IntVar(&evalStock, "stock", -1, "ground-truth inventory count (-1 = none)")
	rootCmd.AddCommand(evalCmd)
}

func runEval(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := newLogger("warn")

	metrics := httpadapter.NewMetrics(prometheus.NewRegistry())

	auditSvc, err := buildAuditService(cfg, metrics, logger)
	if err != nil {
		return err
	}
	defer auditSvc.Close()

	_, pipeline, err := buildPipeline(cmd.Context(), cfg, auditSvc, logger)
	if err != nil {
		return err
	}

	caller := service.Caller{UserID: evalUserID}
	if evalStock >= 0 {
		caller.GroundTruth = &ces.GroundTruth{Stock: evalStock}
	}

	result := pipeline.Process(cmd.Context(), strings.Join(args, " "), caller)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
