// Command sysdbd is the SysDB daemon: it loads a YAML configuration file,
// starts the frontend listener + worker pool (internal/server) and the
// collector scheduler (internal/collector) against a shared in-memory
// store (internal/store), and shuts both down cleanly on SIGINT/SIGTERM.
// SIGHUP re-reads the configuration file and re-initializes the frontend
// without dropping the store (spec.md §6).
//
// Flag surface and exit codes follow spec.md §6 exactly; signal
// handling and graceful-shutdown sequencing are the usual daemon shape:
// os/signal.Notify, context cancellation, sync.WaitGroup.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sysdb/sysdb/internal/collector"
	"github.com/sysdb/sysdb/internal/config"
	"github.com/sysdb/sysdb/internal/logging"
	"github.com/sysdb/sysdb/internal/server"
	"github.com/sysdb/sysdb/internal/store"
)

// version is reported by -V; set at build time via
// -ldflags "-X main.version=...". It is a plain string, not a cobra
// Version field, so the daemon controls the exact -V output text
// spec.md §6 specifies rather than cobra's default "name version x"
// format.
var version = "dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var (
		configPath  string
		noDaemonize bool
		showVersion bool
	)

	root := &cobra.Command{
		Use:           "sysdbd",
		Short:         "SysDB system-information database daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if showVersion {
				fmt.Fprintf(cmd.OutOrStdout(), "sysdbd %s\n", version)
				return nil
			}
			return runDaemon(configPath, noDaemonize)
		},
	}
	root.SetArgs(args)
	root.Flags().StringVarP(&configPath, "config", "C", defaultConfigPath(), "path to configuration file")
	root.Flags().BoolVarP(&noDaemonize, "foreground", "D", false, "do not daemonize")
	root.Flags().BoolVarP(&showVersion, "version", "V", false, "print version and exit")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// defaultConfigPath mirrors spec.md §6's "$SYSCONFDIR/sysdb/sysdbd.conf"
// default, falling back to /etc when SYSCONFDIR is unset the way the
// original build's autoconf substitution would at a typical prefix.
func defaultConfigPath() string {
	sysconfdir := os.Getenv("SYSCONFDIR")
	if sysconfdir == "" {
		sysconfdir = "/etc"
	}
	return sysconfdir + "/sysdb/sysdbd.conf"
}

// runDaemon wires the store, server, and collector together and blocks
// until a termination signal arrives. noDaemonize is accepted for
// flag-surface compatibility with spec.md §6; this port never
// double-forks to background itself (the idiomatic Go equivalent is
// running under a supervisor such as systemd), so the daemon always
// behaves as if -D were given.
func runDaemon(configPath string, noDaemonize bool) error {
	_ = noDaemonize

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("sysdbd: %w", err)
	}

	log, err := logging.New(logging.Config{Level: cfg.LogLevel, Dev: cfg.LogDev})
	if err != nil {
		return fmt.Errorf("sysdbd: logger: %w", err)
	}
	defer log.Sync()

	st := store.New(logging.Component(log, "store"))

	return serve(st, cfg, configPath, log)
}

// serve runs the frontend server and collector scheduler against st
// until SIGINT/SIGTERM, reinitializing the frontend on SIGHUP without
// discarding st (spec.md §6's reconfiguration contract).
func serve(st *store.Store, cfg *config.Config, configPath string, log *zap.SugaredLogger) error {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sig)
	signal.Ignore(syscall.SIGPIPE)

	sched := collector.New(logging.Component(log, "collector"))

	for {
		ctx, cancel := context.WithCancel(context.Background())
		var wg sync.WaitGroup
		errCh := make(chan error, 2)

		srv, err := server.New(st, server.Config{
			Listen:       cfg.Listen,
			Workers:      cfg.Workers,
			ChannelDepth: cfg.ChannelDepth,
		}, logging.Component(log, "server"))
		if err != nil {
			cancel()
			return fmt.Errorf("sysdbd: %w", err)
		}

		wg.Add(2)
		go func() {
			defer wg.Done()
			errCh <- srv.Run(ctx)
		}()
		go func() {
			defer wg.Done()
			errCh <- sched.Run(ctx)
		}()

		log.Infow("sysdbd ready", "listen", cfg.Listen, "workers", cfg.Workers)

		var fatal error
		select {
		case s := <-sig:
			cancel()
			if s == syscall.SIGHUP {
				wg.Wait()
				log.Infow("sysdbd reloading configuration")
				reloaded, rerr := config.Load(configPath)
				if rerr != nil {
					log.Warnw("reconfiguration failed, keeping previous configuration", "error", rerr)
				} else {
					cfg = reloaded
				}
				continue
			}
			log.Infow("sysdbd shutting down", "signal", s)
		case err := <-errCh:
			cancel()
			if err != nil {
				fatal = err
			}
		}
		wg.Wait()
		return fatal
	}
}
