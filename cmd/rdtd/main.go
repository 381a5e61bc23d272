// Command rdtd runs a rdt session registry over a UDP socket, exposing
// Prometheus metrics and structured logs.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/hollowline/rdt/rdt"
	"github.com/hollowline/rdt/rdtmetrics"
	"github.com/hollowline/rdt/rdtnet"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var (
	flagConfig    string
	flagListen    string
	flagVerbose   bool
	flagTCPListen string
	flagPeer      string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rdtd",
		Short: "Reliable datagram transport daemon",
		RunE:  runDaemon,
	}
	flags := cmd.Flags()
	flags.StringVar(&flagConfig, "config", "", "path to a YAML config file")
	flags.StringVar(&flagListen, "listen", "", "UDP listen address, overrides config file")
	flags.BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	flags.StringVar(&flagTCPListen, "tcp-listen", "", "local TCP address to bridge through a session, overrides config file")
	flags.StringVar(&flagPeer, "peer", "", "remote UDP address a bridged TCP connection is carried to, overrides config file")
	return cmd
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	fcfg, err := loadFileConfig(flagConfig)
	if err != nil {
		return err
	}
	if flagListen != "" {
		fcfg.Listen = flagListen
	}
	if flagTCPListen != "" {
		fcfg.TCPListen = flagTCPListen
	}
	if flagPeer != "" {
		fcfg.Peer = flagPeer
	}

	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	protoCfg := fcfg.protocolConfig()
	if err := protoCfg.Validate(); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	collector := rdtmetrics.NewCollector(reg)

	pc, err := net.ListenPacket("udp", fcfg.Listen)
	if err != nil {
		return fmt.Errorf("rdtd: listen %s: %w", fcfg.Listen, err)
	}
	defer pc.Close()

	registry := rdtnet.NewRegistry(pc, protoCfg, log, &statsAdapter{c: collector})
	registry.OnAccept(func(id uuid.UUID, _ *rdtnet.UDPConn) {
		collector.SessionsTotal.Inc()
		collector.SessionsActive.Inc()
	})
	registry.OnClose(func(id uuid.UUID) {
		collector.SessionsActive.Dec()
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if fcfg.TCPListen != "" {
		if fcfg.Peer == "" {
			return errors.New("rdtd: tcp_listen set without peer")
		}
		peerAddr, err := net.ResolveUDPAddr("udp", fcfg.Peer)
		if err != nil {
			return fmt.Errorf("rdtd: resolving peer %s: %w", fcfg.Peer, err)
		}
		ln, err := net.Listen("tcp", fcfg.TCPListen)
		if err != nil {
			return fmt.Errorf("rdtd: tcp listen %s: %w", fcfg.TCPListen, err)
		}
		defer ln.Close()
		go func() {
			<-ctx.Done()
			ln.Close()
		}()
		go serveBridge(ctx, ln, registry, peerAddr, log)
		log.Info("rdtd: bridging tcp to session", "tcp_addr", fcfg.TCPListen, "peer", fcfg.Peer)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	metricsSrv := &http.Server{Addr: fcfg.MetricsAddr, Handler: mux}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("rdtd: metrics server failed", "err", err)
		}
	}()
	defer metricsSrv.Close()

	log.Info("rdtd: listening", "addr", pc.LocalAddr().String(), "metrics_addr", fcfg.MetricsAddr)
	err = registry.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// serveBridge accepts local TCP connections and pipes each one through a
// reliable session opened to peer, so a user can `nc` through the link
// end to end.
func serveBridge(ctx context.Context, ln net.Listener, registry *rdtnet.Registry, peer net.Addr, log *slog.Logger) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error("rdtd: tcp accept failed", "err", err)
			continue
		}
		go bridgeConn(ctx, conn, registry, peer, log)
	}
}

// bridgeConn opens one session for conn and copies bytes in both
// directions until either side closes.
func bridgeConn(ctx context.Context, conn net.Conn, registry *rdtnet.Registry, peer net.Addr, log *slog.Logger) {
	defer conn.Close()
	udpConn, err := registry.Open(ctx, peer)
	if err != nil {
		log.Error("rdtd: opening session failed", "err", err, "peer", peer.String())
		return
	}

	done := make(chan struct{}, 2)
	go func() {
		io.Copy(udpConn, conn)
		udpConn.CloseWrite()
		done <- struct{}{}
	}()
	go func() {
		io.Copy(conn, udpConn)
		done <- struct{}{}
	}()
	<-done
	<-done
}

// statsAdapter implements rdt.Stats by forwarding to Prometheus counters.
// The session counters are updated separately, by the OnAccept/OnClose
// callbacks registered in runDaemon.
type statsAdapter struct {
	c *rdtmetrics.Collector
}

func (s *statsAdapter) BytesSent(n int)      { s.c.BytesSent.Add(float64(n)) }
func (s *statsAdapter) BytesReceived(n int)  { s.c.BytesReceived.Add(float64(n)) }
func (s *statsAdapter) PacketRetransmitted() { s.c.PacketsRetransmit.Inc() }
func (s *statsAdapter) PacketCorrupt()       { s.c.PacketsCorrupt.Inc() }
func (s *statsAdapter) PacketDuplicate()     { s.c.PacketsDuplicate.Inc() }
func (s *statsAdapter) PacketOutOfWindow()   { s.c.PacketsOutOfRange.Inc() }

var _ rdt.Stats = (*statsAdapter)(nil)
