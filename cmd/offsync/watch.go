package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bft-labs/offsync/internal/adapters/connectivity"
	"github.com/bft-labs/offsync/pkg/log"
	"github.com/bft-labs/offsync/pkg/offsync"
)

func (c *cli) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Drain the queue whenever connectivity returns, until interrupted",
		Long: "Run the synchronizer in the foreground. With --connectivity-file the " +
			"file's content (online/offline) is watched for transitions; without it " +
			"the host is assumed online and the queue is drained once at start.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			var conn offsync.Connectivity = alwaysOnline{}
			if c.cfg.ConnectivityFile != "" {
				fsig := connectivity.NewFileSignal(c.cfg.ConnectivityFile, log.NewZerologAdapterWithLogger(c.log))
				if err := fsig.Start(ctx); err != nil {
					return fmt.Errorf("watch connectivity: %w", err)
				}
				defer fsig.Stop()
				conn = fsig
			}

			s, err := c.open(true,
				offsync.WithConnectivity(conn),
				offsync.WithEventHandler(&watchEvents{c: c}),
			)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.Start(ctx); err != nil {
				return fmt.Errorf("start: %w", err)
			}
			c.log.Info().
				Str("session", s.SessionID()).
				Bool("online", s.Online()).
				Int("pending", s.Pending()).
				Msg("watching")

			<-ctx.Done()
			c.log.Info().Msg("received signal, stopping...")

			if err := s.Stop(); err != nil {
				return fmt.Errorf("stop: %w", err)
			}
			return nil
		},
	}
}

// watchEvents reports drain outcomes on the console.
type watchEvents struct {
	offsync.BaseEventHandler
	c *cli
}

func (w *watchEvents) OnDrain(e offsync.DrainEvent) {
	w.c.log.Info().
		Int("applied", e.Applied).
		Int("rejected", e.Rejected).
		Int("remaining", e.Remaining).
		Bool("deferred", e.Deferred).
		Dur("took", e.Duration).
		Msg("drain")
}

func (w *watchEvents) OnRejected(e offsync.OperationEvent) {
	w.c.log.Warn().
		Str("id", e.Operation.ID).
		Str("entity", e.Operation.EntityType).
		Str("reason", e.Operation.LastError).
		Msg("operation rejected; see `offsync failed`")
}
