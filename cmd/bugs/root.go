package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/Mschirtzinger/bugledger/internal/config"
	"github.com/Mschirtzinger/bugledger/internal/engine"
	"github.com/Mschirtzinger/bugledger/internal/ledger"
	"github.com/Mschirtzinger/bugledger/internal/ledger/ethledger"
	"github.com/Mschirtzinger/bugledger/internal/ledger/sqlledger"
	"github.com/Mschirtzinger/bugledger/internal/logging"
	"github.com/Mschirtzinger/bugledger/internal/present"
)

// RootOptions holds global flags and the loaded configuration.
type RootOptions struct {
	ConfigPath string
	Verbose    bool

	viper  *viper.Viper
	config *config.Config
	logs   *logging.Factory

	// interactive reports whether prompts may be shown
	interactive func() bool
}

// NewRootCommand creates the root command for the bugs CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{
		interactive: func() bool { return term.IsTerminal(int(os.Stdin.Fd())) },
	})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bugs",
		Short: "Track bugs on a shared ledger",
		Long: `Track bugs on a shared ledger.

The ledger is the only source of truth. Every command connects, loads a
fresh snapshot of all bugs, and then acts on it. Bugs are addressed by
their position on the ledger, which shifts when an earlier bug is deleted,
so always use the index from the latest 'bugs list'.

Configuration is read from .bugledger/config.toml (or $HOME/.bugledger),
BUGLEDGER_* environment variables, and flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if opts.logs != nil {
				return opts.logs.Close()
			}
			return nil
		},
	}

	cmd.AddGroup(
		&cobra.Group{ID: "bugs", Title: "Bug Commands:"},
		&cobra.Group{ID: "advanced", Title: "Advanced Commands:"},
	)

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.ConfigPath, "config", "", "config file (default .bugledger/config.toml)")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "log ledger activity to stderr")
	flags.String("driver", "", "ledger driver (eth|embedded)")
	flags.String("endpoint", "", "ledger endpoint (node URL for eth)")
	flags.String("contract", "", "Bug contract address (eth driver)")
	flags.String("path", "", "ledger database path (embedded driver)")

	cmd.AddCommand(newListCommand(opts))
	cmd.AddCommand(newStatusCommand(opts))
	cmd.AddCommand(newAddCommand(opts))
	cmd.AddCommand(newResolveCommand(opts))
	cmd.AddCommand(newDeleteCommand(opts))
	cmd.AddCommand(newWatchCommand(opts))
	cmd.AddCommand(newConfigCommand(opts))

	return cmd
}

// boundFlags maps persistent flags onto config keys.
var boundFlags = map[string]string{
	"driver":   "ledger.driver",
	"endpoint": "ledger.endpoint",
	"contract": "ledger.contract",
	"path":     "embedded.path",
}

func (o *RootOptions) load(cmd *cobra.Command) error {
	o.viper = config.NewViper(o.ConfigPath)
	for name, key := range boundFlags {
		if err := o.viper.BindPFlag(key, cmd.Root().PersistentFlags().Lookup(name)); err != nil {
			return fmt.Errorf("failed to bind --%s: %w", name, err)
		}
	}

	// config init must work before any file exists
	if cmd.Annotations["skipConfig"] == "true" {
		o.config = config.Default()
		o.logs = logging.Discard()
		return nil
	}

	cfg, err := config.Load(o.viper)
	if err != nil {
		return err
	}
	o.config = cfg

	switch {
	case cfg.Log.File != "":
		o.logs = logging.New(logging.Config{
			File:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
		})
	case o.Verbose:
		o.logs = logging.New(logging.Config{})
	default:
		o.logs = logging.Discard()
	}
	return nil
}

func (o *RootOptions) logger(component string) *log.Logger {
	return o.logs.Logger(component)
}

// dialer returns the ledger dialer for the configured driver.
func (o *RootOptions) dialer() ledger.Dialer {
	if o.config.Ledger.Driver == config.DriverEmbedded {
		ids := make([]ledger.Identity, 0, len(o.config.Embedded.Identities))
		for _, id := range o.config.Embedded.Identities {
			ids = append(ids, ledger.Identity(id))
		}
		return sqlledger.Dialer{Identities: ids}
	}
	return ethledger.Dialer{Config: ethledger.Config{
		Contract:            o.config.Ledger.Contract,
		CallTimeout:         o.config.Ledger.CallTimeout.Std(),
		ReceiptPollInterval: o.config.Ledger.ReceiptPollInterval.Std(),
		Logger:              o.logger("ethledger"),
	}}
}

func (o *RootOptions) engineConfig() *engine.Config {
	return &engine.Config{
		Gas: engine.Gas{
			Read:     o.config.Ledger.GasLimit,
			Write:    o.config.Ledger.GasLimit,
			Precheck: o.config.Ledger.PrecheckGasLimit,
			Delete:   o.config.Ledger.DeleteGasLimit,
		},
		ReadConcurrency: o.config.Engine.ReadConcurrency,
		Logger:          o.logger("engine"),
	}
}

// openEngine bootstraps a session and loads the first projection.
// A failed first load is returned as an error; the caller cannot act on a
// projection it does not have.
func (o *RootOptions) openEngine(ctx context.Context, sink engine.Sink) (*engine.Engine, error) {
	e, err := engine.Start(ctx, o.dialer(), o.config.Endpoint(), o.engineConfig(), sink)
	if err != nil {
		if e != nil {
			_ = e.Close()
		}
		return nil, err
	}
	return e, nil
}

// withActions runs fn against a freshly loaded engine.
func (o *RootOptions) withActions(cmd *cobra.Command, fn func(ctx context.Context, e *engine.Engine, a *present.Actions) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	e, err := o.openEngine(ctx, nil)
	if err != nil {
		return err
	}
	defer e.Close()

	return fn(ctx, e, present.NewActions(e))
}

// requireIdentity fails commands that need an acting identity.
func requireIdentity(e *engine.Engine) error {
	if _, ok := e.Session().Acting(); !ok {
		return fmt.Errorf("%w: %s offers no identities", engine.ErrNoIdentity, e.Session().Endpoint())
	}
	return nil
}

func since(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return time.Since(t).Round(time.Millisecond).String() + " ago"
}
