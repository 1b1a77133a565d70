// Command dhtnode is the process entry point: it wires config, node, store,
// job, objectstore, task, and api together into a running ring peer.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ringjobs/ringjobs/api"
	"github.com/ringjobs/ringjobs/config"
	"github.com/ringjobs/ringjobs/job"
	"github.com/ringjobs/ringjobs/node"
	"github.com/ringjobs/ringjobs/objectstore"
)

var (
	bootstrapFlag string
	listenPort    int
	httpPort      int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dhtnode",
		Short: "A ringjobs Chord DHT peer: job coordination over a peer-to-peer ring",
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start this peer: join the ring (or form one) and serve RPC and HTTP",
		RunE:  runServe,
	}
	serveCmd.Flags().StringVar(&bootstrapFlag, "bootstrap", "", "host:port of an existing ring member (empty forms a new ring)")
	serveCmd.Flags().IntVar(&listenPort, "listen-port", 0, "peer RPC port (default from config/env, spec default 6501)")
	serveCmd.Flags().IntVar(&httpPort, "http-port", 0, "HTTP API port (default from config/env, spec default 8001)")

	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if bootstrapFlag != "" {
		cfg.BootstrapNode = bootstrapFlag
	}
	if listenPort != 0 {
		cfg.ListenPort = listenPort
	}
	if httpPort != 0 {
		cfg.HTTPPort = httpPort
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	endpoint := "127.0.0.1:" + strconv.Itoa(cfg.ListenPort)
	rpcListener, err := net.Listen("tcp", ":"+strconv.Itoa(cfg.ListenPort))
	if err != nil {
		return fmt.Errorf("listen rpc: %w", err)
	}

	n, err := node.NewNode(cfg.Node, endpoint, logger)
	if err != nil {
		return fmt.Errorf("create node: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := n.Join(ctx, cfg.BootstrapNode); err != nil {
		return fmt.Errorf("join ring: %w", err)
	}
	n.StartDaemons()

	go func() {
		if err := n.Serve(rpcListener); err != nil {
			logger.Error().Err(err).Msg("rpc server stopped")
		}
	}()

	objects := objectstore.NewFake("raw", "processed")
	exec := newPassthroughExecutor(objects)
	coordinator := job.NewCoordinator(n, exec, cfg.Job, logger)
	coordinator.Start()

	apiServer := api.New(n, coordinator, objects, logger)
	httpServer := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.HTTPPort),
		Handler: apiServer,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	color.HiGreen("✓ dhtnode %s listening: rpc %s, http :%d", n.Self().ID.String(), endpoint, cfg.HTTPPort)
	if cfg.BootstrapNode == "" {
		color.HiYellow("formed a new ring (no bootstrap peer given)")
	} else {
		color.HiYellow("joined ring via bootstrap %s", cfg.BootstrapNode)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	color.HiYellow("shutting down...")
	coordinator.Stop()
	_ = httpServer.Close()
	_ = n.Close()
	return nil
}
