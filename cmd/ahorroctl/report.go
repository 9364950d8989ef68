package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ahorro/internal/backup"
	"ahorro/internal/core"
)

var flagCSVOut string

var exportCSVCmd = &cobra.Command{
	Use:   "export-csv <challenge-id>",
	Short: "Write the movement history of one challenge as CSV",
	Args:  cobra.ExactArgs(1),
	RunE:  runExportCSV,
}

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Net balance per challenge and the global total",
	Args:  cobra.NoArgs,
	RunE:  runBalance,
}

var challengesCmd = &cobra.Command{
	Use:   "challenges",
	Short: "List preset and custom challenges",
	Args:  cobra.NoArgs,
	RunE:  runChallenges,
}

func init() {
	exportCSVCmd.Flags().StringVarP(&flagCSVOut, "out", "o", "", "Output file (default stdout)")
	rootCmd.AddCommand(exportCSVCmd, balanceCmd, challengesCmd)
}

func runExportCSV(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	id := args[0]
	if _, ok, err := store.LoadChallenge(ctx, id); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("unknown challenge %q", id)
	}
	l, err := store.LoadLedger(ctx, id)
	if err != nil {
		return err
	}

	w, closeOut, err := output(cmd, flagCSVOut)
	if err != nil {
		return err
	}
	if err := backup.WriteCSV(w, l.History, nil); err != nil {
		closeOut()
		return err
	}
	return closeOut()
}

func allChallenges(cmd *cobra.Command) ([]core.ChallengeConfig, error) {
	custom, err := store.ListCustomConfigs(cmd.Context())
	if err != nil {
		return nil, err
	}
	return append(core.Presets(), custom...), nil
}

func runBalance(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	challenges, err := allChallenges(cmd)
	if err != nil {
		return err
	}
	sess, err := store.LoadSession(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var total int64
	for _, c := range challenges {
		net, err := store.NetBalance(ctx, c.ID)
		if err != nil {
			return err
		}
		total += net
		marker := " "
		if c.ID == sess.LastChallengeID {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %-28s %-24s %12s\n", marker, c.ID, c.Name, core.FormatMXN(net))
	}
	fmt.Fprintf(out, "  %-53s %12s\n", "TOTAL", core.FormatMXN(total))
	return nil
}

func runChallenges(cmd *cobra.Command, _ []string) error {
	challenges, err := allChallenges(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, c := range challenges {
		fmt.Fprintf(out, "%-28s %-24s %5d slots  goal %s\n", c.ID, c.Name, c.TotalItems, core.FormatMXN(c.GoalAmount))
	}
	return nil
}
