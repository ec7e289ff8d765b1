package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vboughner/brain-lambda/internal/engine"
)

func newMemorizeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "memorize <statement>",
		Aliases: []string{"remember"},
		Short:   "Store a memory",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			statement := strings.Join(args, " ")
			return opts.run(cmd, func(ctx context.Context, s *session) (*engine.Response, error) {
				return s.engine.Memorize(ctx, s.caller, statement)
			})
		},
	}
}

func newRecallCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "recall <question>",
		Aliases: []string{"ask"},
		Short:   "Find the memories that best answer a question",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")
			return opts.run(cmd, func(ctx context.Context, s *session) (*engine.Response, error) {
				return s.engine.Recall(ctx, s.caller, question)
			})
		},
	}
}

func newListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every memory, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd, func(ctx context.Context, s *session) (*engine.Response, error) {
				return s.engine.List(ctx, s.caller)
			})
		},
	}
}

func newDeleteOneCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-one <when-stored>",
		Short: "Delete the memory stored at the given millisecond timestamp",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			storedAt, err := parseStoredAt(args[0])
			if err != nil {
				return err
			}
			return opts.run(cmd, func(ctx context.Context, s *session) (*engine.Response, error) {
				return s.engine.DeleteOne(ctx, s.caller, storedAt)
			})
		},
	}
}

func newDeleteAllCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-all",
		Short: "Delete every memory of the user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd, func(ctx context.Context, s *session) (*engine.Response, error) {
				return s.engine.DeleteAll(ctx, s.caller)
			})
		},
	}
}

func newUpdateTextCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "update-text <when-stored> <text>",
		Short: "Replace the text of a memory",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			storedAt, err := parseStoredAt(args[0])
			if err != nil {
				return err
			}
			text := strings.Join(args[1:], " ")
			return opts.run(cmd, func(ctx context.Context, s *session) (*engine.Response, error) {
				return s.engine.UpdateText(ctx, s.caller, storedAt, text)
			})
		},
	}
}

func newReportCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Compile usage statistics over the whole store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd, func(ctx context.Context, s *session) (*engine.Response, error) {
				return s.engine.Report(ctx, s.caller)
			})
		},
	}
}

// cobra reserves "help" for its own command tree
func newHowtoCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "howto",
		Short: "Explain how to talk to your brain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd, func(_ context.Context, s *session) (*engine.Response, error) {
				return s.engine.Help(s.caller.LanguageTag), nil
			})
		},
	}
}

func parseStoredAt(arg string) (int64, error) {
	storedAt, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || storedAt <= 0 {
		return 0, fmt.Errorf("invalid when-stored %q: expected a positive millisecond timestamp", arg)
	}
	return storedAt, nil
}
