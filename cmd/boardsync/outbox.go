package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// newOutboxCommand builds the outbox command group.
func newOutboxCommand(opts *globalOptions, stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect or clear outbound events awaiting delivery",
	}
	var (
		limit int
		dead  bool
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List queued outbound events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnv(cmd.Context(), opts, "outbox list", stderr, func(ctx context.Context, env *runtimeEnv) error {
				list := env.repo.Pending
				if dead {
					list = env.repo.DeadLetters
				}
				entries, err := list(ctx, limit)
				if err != nil {
					return err
				}
				t := newTable("ID", "Kind", "Project", "Attempts", "Last error", "Created")
				for _, entry := range entries {
					t.Row(
						entry.ID,
						string(entry.Kind),
						entry.ProjectID,
						strconv.Itoa(entry.Attempts),
						entry.LastError,
						entry.CreatedAt.Format(time.RFC3339),
					)
				}
				_, _ = fmt.Fprintln(stdout, t.String())
				return nil
			})
		},
	}
	list.Flags().IntVar(&limit, "limit", 50, "maximum entries to list")
	list.Flags().BoolVar(&dead, "dead", false, "list events the remote rejected permanently")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "count",
			Short: "Print the number of queued outbound events",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withEnv(cmd.Context(), opts, "outbox count", stderr, func(ctx context.Context, env *runtimeEnv) error {
					n, err := env.repo.CountPending(ctx)
					if err != nil {
						return err
					}
					_, _ = fmt.Fprintln(stdout, n)
					return nil
				})
			},
		},
		list,
		&cobra.Command{
			Use:   "purge",
			Short: "Drop every queued outbound event",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withEnv(cmd.Context(), opts, "outbox purge", stderr, func(ctx context.Context, env *runtimeEnv) error {
					n, err := env.repo.Purge(ctx)
					if err != nil {
						return err
					}
					env.logger.Warn("outbox purged", "removed", n)
					_, _ = fmt.Fprintf(stdout, "purged %d entries\n", n)
					return nil
				})
			},
		},
	)
	return cmd
}

// withEnv runs fn inside a bootstrapped environment with command flow logging.
func withEnv(ctx context.Context, opts *globalOptions, command string, stderr io.Writer, fn func(context.Context, *runtimeEnv) error) error {
	env, err := bootstrap(ctx, opts, command, stderr)
	if err != nil {
		return err
	}
	defer env.Close()
	env.logger.Info("command flow start", "command", command)
	if err := fn(ctx, env); err != nil {
		env.logger.Error("command flow failed", "command", command, "err", err)
		return fmt.Errorf("run %s command: %w", command, err)
	}
	env.logger.Info("command flow complete", "command", command)
	return nil
}
