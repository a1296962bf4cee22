package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/planetqradio/creditledger/internal/domain"
	"github.com/planetqradio/creditledger/internal/service"
)

func init() {
	rootCmd.AddCommand(provisionCmd)
	rootCmd.AddCommand(creditCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(verifyCmd)

	provisionCmd.Flags().String("role", string(domain.RoleUser), "Role: user | admin")
	provisionCmd.Flags().Int64("max-monthly", 0, "Monthly credit allowance")

	creditCmd.Flags().StringP("description", "d", "", "Reason recorded on the log entry; required for negative amounts")

	historyCmd.Flags().IntP("limit", "n", 0, "Maximum entries to show (0 = configured limit)")
}

var provisionCmd = &cobra.Command{
	Use:   "provision NAME EMAIL",
	Short: "Mirror an identity into the ledger",
	Args:  cobra.ExactArgs(2),
	RunE:  runProvision,
}

func runProvision(cmd *cobra.Command, args []string) error {
	role, _ := cmd.Flags().GetString("role")
	monthly, _ := cmd.Flags().GetInt64("max-monthly")

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	u, err := a.admin.ProvisionUser(cmd.Context(), operator(cmd), service.NewUser{
		Name:              args[0],
		Email:             args[1],
		Role:              domain.Role(role),
		MaxMonthlyCredits: monthly,
	})
	if err != nil {
		return err
	}
	return printJSON(cmd, u)
}

var creditCmd = &cobra.Command{
	Use:   "credit USER_ID AMOUNT",
	Short: "Grant credits, or correct a balance with a negative amount",
	Long: `Grant AMOUNT credits to USER_ID. A negative AMOUNT records a forward
correction that debits the balance; it needs --description and may not take
the balance below zero. Existing log entries are never changed.`,
	Args: cobra.ExactArgs(2),
	RunE: runCredit,
}

func runCredit(cmd *cobra.Command, args []string) error {
	userID, err := parseUserID(args[0])
	if err != nil {
		return err
	}
	amount, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("amount must be an integer: %q", args[1])
	}
	description, _ := cmd.Flags().GetString("description")

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	var res service.CreditResult
	if amount > 0 && description == "" {
		res, err = a.admin.AddCredits(cmd.Context(), operator(cmd), userID, amount)
	} else {
		res, err = a.admin.Adjust(cmd.Context(), operator(cmd), userID, amount, description)
	}
	if err != nil {
		return err
	}
	return printJSON(cmd, res)
}

var historyCmd = &cobra.Command{
	Use:   "history USER_ID",
	Short: "Show a user's credit log, newest first",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	userID, err := parseUserID(args[0])
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	entries, err := a.ledger.History(cmd.Context(), operator(cmd), userID, limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No credit log entries.")
		return nil
	}
	fmt.Fprintf(out, "%-6s %-20s %-11s %8s %8s  %s\n", "ID", "TIME", "KIND", "AMOUNT", "BALANCE", "DESCRIPTION")
	for _, e := range entries {
		fmt.Fprintf(out, "%-6d %-20s %-11s %8d %8d  %s\n",
			e.ID, e.CreatedAt.Format("2006-01-02 15:04:05"), e.Kind, e.Amount, e.BalanceAfter, e.Description)
	}
	return nil
}

var verifyCmd = &cobra.Command{
	Use:   "verify USER_ID",
	Short: "Check that a user's credit log sums to their balance",
	Args:  cobra.ExactArgs(1),
	RunE:  runVerify,
}

func runVerify(cmd *cobra.Command, args []string) error {
	userID, err := parseUserID(args[0])
	if err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	v, err := a.ledger.Verify(cmd.Context(), operator(cmd), userID)
	if err != nil {
		return err
	}
	if err := printJSON(cmd, v); err != nil {
		return err
	}
	if !v.Consistent {
		return fmt.Errorf("user %d: balance %d does not match ledger sum %d", userID, v.Balance, v.LedgerSum)
	}
	return nil
}

func parseUserID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user id %q", raw)
	}
	return id, nil
}
