package cli

import (
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"echo-grade/api/internal/app"
	"echo-grade/api/internal/handle"
	"echo-grade/api/internal/httpserver"
	"echo-grade/api/internal/logging"
	"echo-grade/api/internal/metrics"
)

// serveCmd runs the HTTP grading API.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP grading API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if p, _ := cmd.Flags().GetString("port"); strings.TrimSpace(p) != "" {
			cfg.Port = p
		}
		noDB, _ := cmd.Flags().GetBool("no-db")

		if err := logging.Init(cfg.LogFile); err != nil {
			return err
		}
		defer logging.Close()
		metrics.Init()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := app.Build(ctx, cfg, app.Options{NoDB: noDB})
		if err != nil {
			return err
		}
		defer a.Close()

		var (
			answers handle.AnswerWriter
			db      handle.Pinger
		)
		if a.Answers != nil {
			answers, db = a.Answers, a.DB
		}
		mux := http.NewServeMux()
		handle.New(a.Pipeline, answers, db, cfg.RequestTimeout).Routes(mux)

		return httpserver.Run(ctx, ":"+cfg.Port, mux, cfg.RequestTimeout)
	},
}

func init() {
	serveCmd.Flags().String("port", "", "listen port (overrides PORT)")
	serveCmd.Flags().Bool("no-db", false, "run without Postgres; only POST /analyze works")
	rootCmd.AddCommand(serveCmd)
}
