package cli

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/pagevault/pkg/types"
)

func newLedgerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Apply and inspect currency ledger entries",
	}
	cmd.AddCommand(newLedgerApplyCmd())
	cmd.AddCommand(newLedgerBalanceCmd())
	cmd.AddCommand(newLedgerHistoryCmd())
	return cmd
}

func newLedgerApplyCmd() *cobra.Command {
	var (
		txType      string
		description string
		related     string
	)
	cmd := &cobra.Command{
		Use:   "apply <user-id> <amount>",
		Short: "Apply a signed currency delta to a user",
		Long: "Append one ledger entry and update the user's balance atomically.\n" +
			"Non-administrative debits may not take the balance below zero.",
		Example: "  pagevault ledger apply 0190c3e2-... 50 --type admin_grant --description \"support credit\"\n" +
			"  pagevault ledger apply 0190c3e2-... --type admin_deduct -- -20",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return exitError(exitUserError, "amount %q is not an integer", args[1])
			}
			t, err := types.ParseTxType(txType)
			if err != nil {
				return exitError(exitUserError, "%s", err)
			}

			b, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer b.Close()

			balance, err := b.ApplyCurrencyDelta(cmd.Context(), types.CurrencyDelta{
				UserID:          args[0],
				Amount:          amount,
				Type:            t,
				Description:     description,
				RelatedEntityID: related,
			})
			if err != nil {
				return commandError("apply delta", err)
			}
			if flags.jsonMode {
				return printJSON(cmd, map[string]any{"user_id": args[0], "balance": balance})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "balance: %d\n", balance)
			return nil
		},
	}
	cmd.Flags().StringVar(&txType, "type", "", "transaction type (required): purchase, unlock_chapter, daily_reward, admin_grant, admin_deduct, admin_adjust, refund")
	_ = cmd.MarkFlagRequired("type")
	cmd.Flags().StringVar(&description, "description", "", "human-readable description")
	cmd.Flags().StringVar(&related, "related", "", "related entity id")
	return cmd
}

func newLedgerBalanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance <user-id>",
		Short: "Show the cached balance and the ledger sum for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer b.Close()

			rec, err := b.ReconcileBalance(cmd.Context(), args[0])
			if err != nil {
				return commandError("reconcile balance", err)
			}
			if flags.jsonMode {
				return printJSON(cmd, map[string]any{
					"user_id":    rec.UserID,
					"balance":    rec.Cached,
					"ledger_sum": rec.LedgerSum,
					"consistent": rec.Consistent(),
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "balance:    %d\n", rec.Cached)
			fmt.Fprintf(out, "ledger sum: %d\n", rec.LedgerSum)
			if !rec.Consistent() {
				return exitError(exitUserError, "cached balance differs from ledger by %d", rec.Cached-rec.LedgerSum)
			}
			return nil
		},
	}
}

func newLedgerHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <user-id>",
		Short: "List a user's ledger entries, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer b.Close()

			txs, err := b.ListTransactions(cmd.Context(), args[0], limit)
			if err != nil {
				return commandError("list transactions", err)
			}
			if flags.jsonMode {
				return printJSON(cmd, txs)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CREATED\tAMOUNT\tTYPE\tRELATED\tDESCRIPTION")
			for _, tx := range txs {
				fmt.Fprintf(w, "%s\t%+d\t%s\t%s\t%s\n",
					tx.CreatedAt.Format(time.RFC3339), tx.Amount, tx.Type, tx.RelatedEntityID, tx.Description)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of entries")
	return cmd
}
