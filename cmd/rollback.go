package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hodlisma/hodlisma-engine/pkg/models"
)

func rollbackCommand(opts *rootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "rollback <audit-id>",
		Short: "Undo the change recorded by one audit entry",
		Long: `Restore the state captured by an audit entry. Creations are deleted,
deletions are re-inserted and updates get their previous values back.
The rollback itself is recorded as a new audit entry.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			auditID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid audit id %q: %w", args[0], err)
			}

			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			entry, err := a.audit.GetByID(cmd.Context(), auditID)
			if err != nil {
				return fmt.Errorf("load audit entry: %w", err)
			}
			if !yes {
				out := cmd.OutOrStdout()
				if err := printEntries(out, []*models.AuditLogEntry{entry}, false); err != nil {
					return err
				}
				fmt.Fprintln(out, "\nRe-run with --yes to roll this entry back.")
				return nil
			}

			result := a.rollback.Rollback(cmd.Context(), auditID)
			a.logger.Info("Rollback finished",
				zap.String("audit_id", auditID.String()),
				zap.Bool("success", result.Success),
				zap.String("message", result.Message))
			if !result.Success {
				return fmt.Errorf("rollback failed: %s", result.Message)
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Message)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "perform the rollback without the preview")
	return cmd
}
