package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/planetqradio/creditledger/internal/auth"
	"github.com/planetqradio/creditledger/internal/config"
	"github.com/planetqradio/creditledger/internal/domain"
	"github.com/planetqradio/creditledger/internal/withdrawal"
)

func init() {
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(quoteCmd)

	tokenCmd.Flags().String("role", string(domain.RoleUser), "Role claim: user | admin")
}

var tokenCmd = &cobra.Command{
	Use:   "token USER_ID",
	Short: "Issue a session token for local testing",
	Long: `Issue a Bearer token signed with JWT_SECRET. In production tokens come
from the identity provider; this is for development and load tests.`,
	Args: cobra.ExactArgs(1),
	RunE: runToken,
}

func runToken(cmd *cobra.Command, args []string) error {
	userID, err := parseUserID(args[0])
	if err != nil {
		return err
	}
	role, _ := cmd.Flags().GetString("role")

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	caller := domain.Caller{UserID: userID, Role: domain.Role(role)}
	if !caller.Role.Valid() {
		return fmt.Errorf("unknown role %q", role)
	}

	raw, err := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL).Generate(caller)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), raw)
	return nil
}

var quoteCmd = &cobra.Command{
	Use:   "quote POINTS",
	Short: "Show whether a reward balance can be withdrawn and what it is worth",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuote,
}

func runQuote(cmd *cobra.Command, args []string) error {
	points, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("points must be an integer: %q", args[0])
	}
	return printJSON(cmd, withdrawal.Evaluate(points))
}
