// Command modstore is a thin operational CLI over the moderation store:
// schema creation, record inspection and queue listings against a real
// DynamoDB endpoint (or the in-memory store for dry runs).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/MadlinksCoding/modstore"
	"github.com/MadlinksCoding/modstore/internal/telemetry"
	"github.com/MadlinksCoding/modstore/internal/types"
)

var (
	flagTable    string
	flagRegion   string
	flagEndpoint string
	flagMemory   bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "modstore",
		Short:         "Moderation record store operations",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return telemetry.Init(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return telemetry.Shutdown(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&flagTable, "table", "", "table name (default from MODSTORE_TABLE_NAME)")
	root.PersistentFlags().StringVar(&flagRegion, "region", "", "AWS region")
	root.PersistentFlags().StringVar(&flagEndpoint, "endpoint", "", "DynamoDB endpoint override (local DynamoDB)")
	root.PersistentFlags().BoolVar(&flagMemory, "memory", false, "use the in-memory store (dry runs)")

	root.AddCommand(schemaCmd(), createCmd(), getCmd(), listCmd(), actionCmd(), countCmd())
	return root
}

func openStore(ctx context.Context) (modstore.Store, error) {
	cfg := modstore.ConfigFromEnv()
	if flagTable != "" {
		cfg.TableName = flagTable
	}
	if flagMemory {
		return modstore.NewMemory(ctx, cfg)
	}
	return modstore.NewDynamoDB(ctx, cfg, flagRegion, flagEndpoint)
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Create the moderation table and its indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			return s.CreateModerationSchema(cmd.Context())
		},
	}
}

func createCmd() *cobra.Command {
	var (
		in          modstore.CreateInput
		typeStr     string
		priorityStr string
		contentJSON string
		timestamp   int64
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a moderation entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Type = types.ContentType(typeStr)
			in.Priority = types.Priority(priorityStr)
			if contentJSON != "" {
				var content any
				if err := json.Unmarshal([]byte(contentJSON), &content); err != nil {
					return fmt.Errorf("parse --content: %w", err)
				}
				in.Content = content
			}
			s, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			id, err := s.CreateModerationEntry(cmd.Context(), in, timestamp)
			if err != nil {
				return err
			}
			return printJSON(map[string]string{"moderationId": id})
		},
	}
	cmd.Flags().StringVar(&in.UserID, "user", "", "submitting user id")
	cmd.Flags().StringVar(&in.ContentID, "content-id", "", "external content id")
	cmd.Flags().StringVar(&typeStr, "type", "", "content type")
	cmd.Flags().StringVar(&priorityStr, "priority", string(types.PriorityNormal), "review priority")
	cmd.Flags().StringVar(&contentJSON, "content", "", "content payload as JSON")
	cmd.Flags().Int64Var(&timestamp, "submitted-at", 0, "submission time (epoch ms; defaults to now)")
	cmd.Flags().BoolVar(&in.IsPreApproved, "pre-approved", false, "start in approved status")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("content-id")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func getCmd() *cobra.Command {
	var (
		userID         string
		includeDeleted bool
	)
	cmd := &cobra.Command{
		Use:   "get <moderationId>",
		Short: "Fetch one moderation record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			item, err := s.GetModerationRecordByID(cmd.Context(), args[0], userID, includeDeleted)
			if err != nil {
				return err
			}
			return printJSON(item)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "owning user id (scopes the lookup)")
	cmd.Flags().BoolVar(&includeDeleted, "include-deleted", false, "return soft-deleted records")
	return cmd
}

func listCmd() *cobra.Command {
	var (
		filter      modstore.QueryFilter
		priorityStr string
		typeStr     string
		opts        modstore.QueryOptions
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List moderation records matching a filter",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter.Priority = types.Priority(priorityStr)
			filter.Type = types.ContentType(typeStr)
			s, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			res, err := s.GetModerationItems(cmd.Context(), filter, opts)
			if err != nil {
				return err
			}
			return printJSON(res)
		},
	}
	cmd.Flags().StringVar(&filter.UserID, "user", "", "filter by user id")
	cmd.Flags().StringVar(&filter.Status, "status", "", "filter by status (or 'all')")
	cmd.Flags().StringVar(&priorityStr, "priority", "", "filter by priority")
	cmd.Flags().StringVar(&typeStr, "type", "", "filter by content type")
	cmd.Flags().StringVar(&filter.DayKey, "day", "", "filter by UTC day (YYYYMMDD)")
	cmd.Flags().StringVar(&filter.ModeratedBy, "moderated-by", "", "filter by moderator")
	cmd.Flags().BoolVar(&filter.IncludeDeleted, "include-deleted", false, "include soft-deleted records")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "page size")
	cmd.Flags().StringVar(&opts.NextToken, "token", "", "pagination token from the previous page")
	cmd.Flags().BoolVar(&opts.Ascending, "asc", false, "oldest first")
	return cmd
}

func actionCmd() *cobra.Command {
	var (
		in        modstore.ActionInput
		actionStr string
		global    bool
	)
	cmd := &cobra.Command{
		Use:   "action <moderationId>",
		Short: "Apply a moderator decision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.ModerationID = args[0]
			in.Action = types.Action(actionStr)
			if global {
				in.ModerationType = types.ModerationGlobal
			}
			s, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			return s.ApplyModerationAction(cmd.Context(), in)
		},
	}
	cmd.Flags().StringVar(&actionStr, "action", "", "approve, reject, pending_resubmission or escalate")
	cmd.Flags().StringVar(&in.ModeratorID, "moderator", "", "acting moderator id")
	cmd.Flags().StringVar(&in.UserID, "user", "", "owning user id (scopes the lookup)")
	cmd.Flags().StringVar(&in.Reason, "reason", "", "decision reason")
	cmd.Flags().StringVar(&in.Note, "note", "", "private moderator note")
	cmd.Flags().StringVar(&in.PublicNote, "public-note", "", "note shown to the submitter")
	cmd.Flags().BoolVar(&global, "global", false, "approve with global scope")
	_ = cmd.MarkFlagRequired("action")
	_ = cmd.MarkFlagRequired("moderator")
	return cmd
}

func countCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "count",
		Short: "Count records per status",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			if status != "" {
				n, err := s.CountModerationItemsByStatus(cmd.Context(), status, modstore.CountFilter{})
				if err != nil {
					return err
				}
				return printJSON(map[string]int64{status: n})
			}
			counts, err := s.GetAllModerationCounts(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(counts)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "count a single status (or 'all')")
	return cmd
}
