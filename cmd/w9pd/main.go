// Command w9pd listens for 9P2000.L/.W connections and serves one or
// more named shares from the host filesystem.
//
// A single cobra.Command root with pflag-backed flags bound to
// package-level variables, which run reads to configure the library
// layer beneath it.
package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"libp9.dev/w9p"
)

var (
	listenAddr string
	shareFlags []string
	debugLog   bool
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "w9pd",
		Short: "Serve host directories over 9P2000.L/.W",
		RunE:  run,
	}

	flags := cmd.Flags()
	flags.StringVarP(&listenAddr, "listen", "l", "127.0.0.1:5640", "address to listen on")
	flags.StringArrayVarP(&shareFlags, "share", "s", nil, "name=path[:ro] share to export, repeatable")
	flags.BoolVar(&debugLog, "debug", false, "enable debug-level logging")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	if len(shareFlags) == 0 {
		return fmt.Errorf("w9pd: at least one --share is required")
	}

	zcfg := zap.NewProductionConfig()
	if debugLog {
		zcfg = zap.NewDevelopmentConfig()
	}
	logger, err := zcfg.Build()
	if err != nil {
		return err
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	srv := w9p.New(
		w9p.WithLogger(sugar),
		w9p.WithServerIdentity(uint32(os.Getuid()), os.Getuid() == 0),
	)

	for _, spec := range shareFlags {
		name, path, readOnly, err := parseShareFlag(spec)
		if err != nil {
			return err
		}
		if err := srv.AddShare(name, path, readOnly); err != nil {
			return err
		}
	}

	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}
	sugar.Infow("listening", "addr", ln.Addr().String())

	acceptor := srv.Serve(ln)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	sugar.Info("shutting down")
	acceptor.Pause()
	return acceptor.Teardown()
}

// parseShareFlag parses "name=path" or "name=path:ro" into its parts.
func parseShareFlag(spec string) (name, path string, readOnly bool, err error) {
	eq := strings.IndexByte(spec, '=')
	if eq < 0 {
		return "", "", false, fmt.Errorf("w9pd: invalid --share %q, want name=path", spec)
	}
	name = spec[:eq]
	rest := spec[eq+1:]
	if strings.HasSuffix(rest, ":ro") {
		return name, strings.TrimSuffix(rest, ":ro"), true, nil
	}
	return name, rest, false, nil
}

func main() {
	pflag.CommandLine.SortFlags = false
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "w9pd:", err)
		os.Exit(1)
	}
}
