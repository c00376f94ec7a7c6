package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/offsync/internal/cliconfig"
	"github.com/bft-labs/offsync/pkg/log"
	"github.com/bft-labs/offsync/pkg/offsync"
)

const helpDescription = `
Keep working offline: cache reference data locally and queue writes until
the backend is reachable again.

Highlights:
  - Every write is persisted before it is acknowledged and replayed oldest first.
  - Replays carry the operation id as an idempotency key, so nothing applies twice.
  - Rejected writes are kept for review; network failures are retried unchanged.
  - Configure via file ($HOME/.offsync/config.toml), OFFSYNC_* env, or flags.
`

var exampleUsage = strings.TrimSpace(`
  offsync enqueue attendance create '{"student":"s1","present":true}'
  offsync drain --service-url https://api.example.com --auth-key <token>
  offsync watch --connectivity-file /run/offsync/status
  offsync cache get profile
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// cli carries resolved configuration to subcommands.
type cli struct {
	cfg     cliconfig.Config
	cfgPath string
	verbose bool
	log     zerolog.Logger
}

func main() {
	c := newCLI()
	if err := c.rootCmd().Execute(); err != nil {
		c.log.Error().Err(err).Msg("offsync")
		os.Exit(1)
	}
}

func newCLI() *cli {
	return &cli{cfg: cliconfig.DefaultConfig(), log: cliconfig.Logger()}
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "offsync",
		Short:         "Offline cache and write queue with replay on reconnect",
		Long:          strings.TrimSpace(helpDescription),
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.loadConfig(cmd)
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&c.cfgPath, "config", "", "path to config file (default: $HOME/.offsync/config.toml)")
	f.StringVar(&c.cfg.StateDir, "state-dir", c.cfg.StateDir, "directory holding the persisted cache and queue")
	f.StringVar(&c.cfg.Session, "session", c.cfg.Session, "session id used to namespace persisted state")
	f.StringVar(&c.cfg.Backend, "backend", c.cfg.Backend, "storage backend: file or sqlite")
	f.StringVar(&c.cfg.ServiceURL, "service-url", c.cfg.ServiceURL, "base URL of the backend API")
	f.StringVar(&c.cfg.AuthKey, "auth-key", c.cfg.AuthKey, "bearer token for the backend API")
	f.DurationVar(&c.cfg.HTTPTimeout, "timeout", c.cfg.HTTPTimeout, "HTTP timeout per operation")
	f.StringVar(&c.cfg.ConnectivityFile, "connectivity-file", c.cfg.ConnectivityFile, "file containing online/offline, watched by `watch`")
	f.DurationVar(&c.cfg.RetryInitial, "retry", c.cfg.RetryInitial, "re-drain delay after a server failure while online (0 disables)")
	f.DurationVar(&c.cfg.RetryMax, "retry-max", c.cfg.RetryMax, "maximum re-drain delay")
	f.BoolVarP(&c.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		c.enqueueCmd(),
		c.drainCmd(),
		c.pendingCmd(),
		c.failedCmd(),
		c.retryCmd(),
		c.discardCmd(),
		c.cacheCmd(),
		c.watchCmd(),
	)
	return root
}

// loadConfig applies file, env and flag values (flags win) and validates.
func (c *cli) loadConfig(cmd *cobra.Command) error {
	cliconfig.SetVerbose(c.verbose)
	c.log = cliconfig.Logger()

	cfgFile := c.cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}

	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(&c.cfg, fc, changed); err != nil {
			return err
		}
	}

	// OFFSYNC_* override the file but not explicit flags
	if err := cliconfig.ApplyEnvConfig(&c.cfg, changed); err != nil {
		return err
	}

	if err := c.cfg.Validate(); err != nil {
		return err
	}

	c.log.Debug().Interface("config", c.cfg.Masked()).Msg("configuration")
	return nil
}

// open creates the session. Commands that never reach the backend pass
// remote=false and get a submitter that always defers.
func (c *cli) open(remote bool, opts ...offsync.Option) (*offsync.Session, error) {
	if remote && c.cfg.ServiceURL == "" {
		return nil, fmt.Errorf("service URL is required (--service-url or OFFSYNC_SERVICE_URL)")
	}

	opts = append([]offsync.Option{
		offsync.WithLogger(log.NewZerologAdapterWithLogger(c.log)),
	}, opts...)
	if !remote {
		opts = append(opts, offsync.WithSubmitter(offsync.SubmitterFunc(unreachable)))
	}

	s, err := offsync.New(offsync.Config{
		StateDir:     c.cfg.StateDir,
		SessionID:    c.cfg.Session,
		Backend:      c.cfg.Backend,
		ServiceURL:   c.cfg.ServiceURL,
		AuthKey:      c.cfg.AuthKey,
		HTTPTimeout:  c.cfg.HTTPTimeout,
		RetryInitial: c.cfg.RetryInitial,
		RetryMax:     c.cfg.RetryMax,
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	return s, nil
}

func unreachable(context.Context, offsync.Operation) error {
	return offsync.NetworkError("offline", fmt.Errorf("no backend configured"))
}
