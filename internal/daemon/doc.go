// Package daemon keeps a bug projection fresh in long-running mode.
//
// The ledger has no push channel, so the daemon pulls:
//
//   - RefreshInterval: a ticker requests a reconciliation on every tick
//   - WatchPath: for the embedded ledger, fsnotify reports writes made by
//     other processes and the daemon requests a reconciliation once the
//     file has been quiet for DebounceInterval
//
// Every request goes through the engine's trigger, so a tick or file event
// that lands during a load is folded into a single follow-up load.
//
// # Services
//
// Components such as the dashboard server are passed as Services. They are
// started before the daemon begins refreshing and stopped in reverse order
// on shutdown.
//
// # Usage
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//
//	config := daemon.DefaultConfig()
//	config.RefreshInterval = 5 * time.Second
//	config.WatchPath = ".bugledger/ledger.db"
//	config.Services = []daemon.Service{server}
//
//	d, err := daemon.NewWithConfig(eng, config)
//	if err != nil {
//	    return err
//	}
//	return d.Start(ctx)
package daemon
