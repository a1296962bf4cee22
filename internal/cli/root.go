// Package cli implements ledgerctl, the operator's command line for the
// credit ledger. Commands talk to the store directly through the same
// services the HTTP API uses, acting as an admin caller.
package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/planetqradio/creditledger/internal/config"
	"github.com/planetqradio/creditledger/internal/domain"
	"github.com/planetqradio/creditledger/internal/logging"
	"github.com/planetqradio/creditledger/internal/service"
	"github.com/planetqradio/creditledger/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "ledgerctl",
	Short: "Operate the PlanetQ credit ledger",
	Long: `ledgerctl provisions users, grants and corrects credits, inspects the
credit log and issues session tokens. Configuration comes from the same
environment variables (and optional .env file) as the API server.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().Int64("operator", 1, "User id recorded as the acting admin")
}

// Execute runs the command line with os.Args.
func Execute() error {
	return rootCmd.Execute()
}

// app is everything a store-backed command needs.
type app struct {
	store  domain.LedgerStore
	ledger *service.LedgerService
	admin  *service.AdminService
}

func openApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logging.NewWithOutput(cmd.ErrOrStderr(), cfg.LogLevel, "text")

	s, err := store.Open(cmd.Context(), cfg, log)
	if err != nil {
		return nil, fmt.Errorf("open ledger store: %w", err)
	}
	ledger := service.NewLedgerService(s, log, cfg.HistoryLimit)
	return &app{
		store:  s,
		ledger: ledger,
		admin:  service.NewAdminService(s, ledger, log),
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func operator(cmd *cobra.Command) domain.Caller {
	id, _ := cmd.Flags().GetInt64("operator")
	return domain.Caller{UserID: id, Role: domain.RoleAdmin}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
