package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"ahorro/internal/backup"
)

var (
	flagOut string
	flagYes bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a JSON backup of every stored key",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Restore a JSON backup, overwriting stored keys",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

var errImportNotConfirmed = errors.New("restoring a backup overwrites stored data; re-run with --yes")

func init() {
	exportCmd.Flags().StringVarP(&flagOut, "out", "o", "", "Output file (default stdout)")
	importCmd.Flags().BoolVarP(&flagYes, "yes", "y", false, "Confirm overwriting stored data")
	rootCmd.AddCommand(exportCmd, importCmd)
}

func runExport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	sess, err := store.LoadSession(ctx)
	if err != nil {
		return err
	}
	b, err := backup.Export(ctx, store, backup.Meta{
		Profile:            sess.Profile,
		Theme:              sess.Theme,
		CurrentChallengeID: sess.LastChallengeID,
	}, time.Now())
	if err != nil {
		return err
	}
	data, err := b.Marshal()
	if err != nil {
		return err
	}

	w, closeOut, err := output(cmd, flagOut)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		closeOut()
		return fmt.Errorf("write backup: %w", err)
	}
	if err := closeOut(); err != nil {
		return err
	}
	if flagOut != "" && flagOut != "-" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d keys to %s\n", len(b.LocalStorage), flagOut)
	}
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}
	// Reject unreadable files before asking for confirmation.
	if _, err := backup.Parse(data); err != nil {
		return err
	}
	if !flagYes {
		return errImportNotConfirmed
	}
	n, err := backup.Import(cmd.Context(), store, data)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Restored %d keys from %s\n", n, args[0])
	return nil
}
