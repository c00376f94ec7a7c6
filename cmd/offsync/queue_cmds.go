package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/bft-labs/offsync/pkg/offsync"
)

func (c *cli) enqueueCmd() *cobra.Command {
	var direct bool
	cmd := &cobra.Command{
		Use:   "enqueue <entity> <create|update|delete> [json|-]",
		Short: "Queue a mutation for replay",
		Long: "Queue a mutation for replay. The payload is read from the third argument, " +
			"or from stdin when it is '-' or omitted. With --direct the write is tried " +
			"against the backend first and queued only if it cannot be delivered.",
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := offsync.ParseOperationKind(args[1])
			if err != nil {
				return err
			}
			payload, err := readPayload(cmd.InOrStdin(), args[2:])
			if err != nil {
				return err
			}

			var opts []offsync.Option
			if direct {
				opts = append(opts, offsync.WithConnectivity(alwaysOnline{}))
			}
			s, err := c.open(direct, opts...)
			if err != nil {
				return err
			}
			defer s.Close()

			if direct {
				res, err := s.Mutate(cmd.Context(), args[0], kind, payload)
				if err != nil {
					return err
				}
				state := "queued"
				if res.Applied {
					state = "applied"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", res.ID, state)
				return nil
			}

			id, err := s.Enqueue(cmd.Context(), args[0], kind, payload)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	cmd.Flags().BoolVar(&direct, "direct", false, "try the backend before queueing")
	return cmd
}

func (c *cli) drainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drain",
		Short: "Replay pending operations against the backend now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.open(true)
			if err != nil {
				return err
			}
			defer s.Close()

			res := s.Drain(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "applied=%d rejected=%d remaining=%d deferred=%t\n",
				res.Applied, res.Rejected, res.Remaining, res.Deferred)
			return nil
		},
	}
}

func (c *cli) pendingCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List every queued operation in replay order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.open(false)
			if err != nil {
				return err
			}
			defer s.Close()
			return printOperations(cmd.OutOrStdout(), s.Operations(), asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print operations as JSON")
	return cmd
}

func (c *cli) failedCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "failed",
		Short: "List operations the backend rejected",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.open(false)
			if err != nil {
				return err
			}
			defer s.Close()
			return printOperations(cmd.OutOrStdout(), s.ListFailed(), asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print operations as JSON")
	return cmd
}

func (c *cli) retryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry <id>...",
		Short: "Return failed operations to the queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.open(false)
			if err != nil {
				return err
			}
			defer s.Close()
			for _, id := range args {
				if err := s.Retry(cmd.Context(), id); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func (c *cli) discardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discard <id>...",
		Short: "Drop pending or failed operations without replaying them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.open(false)
			if err != nil {
				return err
			}
			defer s.Close()
			for _, id := range args {
				if err := s.Discard(cmd.Context(), id); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func printOperations(w io.Writer, ops []offsync.Operation, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(ops)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tENTITY\tKIND\tSTATUS\tATTEMPTS\tQUEUED\tLAST ERROR")
	for _, op := range ops {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			op.ID, op.EntityType, op.Kind, op.Status, op.AttemptCount,
			op.EnqueuedAt.Local().Format(time.DateTime), op.LastError)
	}
	return tw.Flush()
}

func readPayload(stdin io.Reader, args []string) (json.RawMessage, error) {
	var data []byte
	if len(args) == 0 || args[0] == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read payload: %w", err)
		}
		data = b
	} else {
		data = []byte(args[0])
	}
	if len(data) == 0 {
		return nil, nil
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("%w: payload is not valid JSON", offsync.ErrInvalidOperation)
	}
	return json.RawMessage(data), nil
}

// alwaysOnline reports online without ever transitioning.
type alwaysOnline struct{}

func (alwaysOnline) Online() bool { return true }

func (alwaysOnline) Subscribe(func(bool)) func() { return func() {} }

var _ offsync.Connectivity = alwaysOnline{}
