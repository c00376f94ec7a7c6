package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bft-labs/offsync/pkg/offsync"
)

func (c *cli) cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and edit the session cache",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "get <key>",
			Short: "Print the cached value for key",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.withCache(func(cache *offsync.Cache) error {
					raw, ok := cache.Get(args[0])
					if !ok {
						return fmt.Errorf("key %q: %w", args[0], offsync.ErrNotFound)
					}
					fmt.Fprintln(cmd.OutOrStdout(), string(raw))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "set <key> [json|-]",
			Short: "Store a JSON value under key",
			Args:  cobra.RangeArgs(1, 2),
			RunE: func(cmd *cobra.Command, args []string) error {
				value, err := readPayload(cmd.InOrStdin(), args[1:])
				if err != nil {
					return err
				}
				if value == nil {
					value = json.RawMessage("null")
				}
				return c.withCache(func(cache *offsync.Cache) error {
					return cache.Set(cmd.Context(), args[0], value)
				})
			},
		},
		&cobra.Command{
			Use:     "rm <key>...",
			Aliases: []string{"remove"},
			Short:   "Remove keys from the cache",
			Args:    cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.withCache(func(cache *offsync.Cache) error {
					for _, k := range args {
						if err := cache.Remove(cmd.Context(), k); err != nil {
							return err
						}
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "ls",
			Short: "List cached keys with their last update time",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.withCache(func(cache *offsync.Cache) error {
					for _, k := range cache.Keys() {
						at, _ := cache.UpdatedAt(k)
						fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", k, at.Local().Format(time.DateTime))
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Drop every cached entry, as on sign-out",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := c.open(false)
				if err != nil {
					return err
				}
				defer s.Close()
				return s.SignOut(cmd.Context())
			},
		},
	)
	return cmd
}

func (c *cli) withCache(fn func(*offsync.Cache) error) error {
	s, err := c.open(false)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s.Cache())
}
