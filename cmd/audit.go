package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hodlisma/hodlisma-engine/pkg/database"
	"github.com/hodlisma/hodlisma-engine/pkg/models"
	"github.com/hodlisma/hodlisma-engine/pkg/realtime"
)

func auditCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the audit history",
	}

	cmd.AddCommand(auditListCommand(opts))
	cmd.AddCommand(auditHistoryCommand(opts))
	cmd.AddCommand(auditFollowCommand(opts))
	return cmd
}

func auditListCommand(opts *rootOptions) *cobra.Command {
	var (
		module string
		limit  int
		offset int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent audit entries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := models.AuditLogFilter{Limit: limit, Offset: offset}
			if module != "" {
				m := models.AuditModule(strings.ToUpper(module))
				if !m.IsValid() {
					return fmt.Errorf("unknown module %q", module)
				}
				filter.Module = &m
			}

			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.audit.ListRecent(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return printEntries(cmd.OutOrStdout(), entries, asJSON)
		},
	}

	cmd.Flags().StringVar(&module, "module", "", "filter by module (crypto, finance, system)")
	cmd.Flags().IntVar(&limit, "limit", models.DefaultAuditPageSize, "maximum entries to show")
	cmd.Flags().IntVar(&offset, "offset", 0, "entries to skip")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print entries as JSON")
	return cmd
}

func auditHistoryCommand(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history <entity-type> <entity-id>",
		Short: "Show every audit entry for one entity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entityID, err := uuid.Parse(args[1])
			if err != nil {
				return fmt.Errorf("invalid entity id %q: %w", args[1], err)
			}

			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.audit.History(cmd.Context(), args[0], entityID)
			if err != nil {
				return err
			}
			return printEntries(cmd.OutOrStdout(), entries, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print entries as JSON")
	return cmd
}

func auditFollowCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "follow",
		Short: "Stream new audit entries as they are recorded",
		Long: `Stream new audit entries until interrupted. Entries come from the Redis
fan-out channel when Redis is configured, otherwise straight from the
database insert notifications.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			emit := func(entry *models.AuditLogEntry) {
				fmt.Fprintln(out, formatEntryLine(entry))
			}

			if a.cfg.Redis.Enabled() {
				client, err := database.NewRedisClient(ctx, &a.cfg.Redis)
				if err != nil {
					return err
				}
				defer client.Close()
				err = realtime.NewRedisPublisher(client, a.cfg.Redis.Channel, a.logger).Subscribe(ctx, emit)
				return ignoreCancel(err)
			}

			hub := realtime.NewHub(a.logger)
			entries, cancel := hub.Subscribe()
			defer cancel()

			listener := database.NewListener(a.cfg.Database.URL(), database.AuditLogChannel, a.logger)
			feed := realtime.NewFeed(listener, a.audit, hub, a.logger)
			done := make(chan error, 1)
			go func() { done <- feed.Run(ctx) }()

			for {
				select {
				case entry := <-entries:
					emit(entry)
				case err := <-done:
					return ignoreCancel(err)
				}
			}
		},
	}
}

func ignoreCancel(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func printEntries(w io.Writer, entries []*models.AuditLogEntry, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Fprintln(w, "No audit entries found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "ID\tWHEN\tMODULE\tACTION\tENTITY\tBY\tROLLBACK\tDESCRIPTION")
	fmt.Fprintln(tw, "--\t----\t------\t------\t------\t--\t--------\t-----------")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.ID,
			e.CreatedAt.Local().Format(time.DateTime),
			e.Module,
			e.Action,
			entityLabel(e),
			e.TriggeredBy,
			yesNo(e.CanRollback()),
			description(e),
		)
	}
	return tw.Flush()
}

func formatEntryLine(e *models.AuditLogEntry) string {
	return fmt.Sprintf("%s  %-7s %-22s %s  [%s] %s",
		e.CreatedAt.Local().Format(time.DateTime), e.Module, e.Action, entityLabel(e), e.TriggeredBy, description(e))
}

func entityLabel(e *models.AuditLogEntry) string {
	if e.EntityID == nil {
		return e.EntityType
	}
	return e.EntityType + "/" + e.EntityID.String()
}

func description(e *models.AuditLogEntry) string {
	if e.Description == nil {
		return ""
	}
	return *e.Description
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
