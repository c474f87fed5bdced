package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	match "github.com/0x5487/marketsim"
	"github.com/0x5487/marketsim/agent"
	"github.com/0x5487/marketsim/clearing"
	"github.com/0x5487/marketsim/internal/config"
	"github.com/0x5487/marketsim/marketdata"
	"github.com/0x5487/marketsim/rpc"
	kafkatransport "github.com/0x5487/marketsim/transport/kafka"
	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	match.SetLogger(logger)
	gin.SetMode(gin.ReleaseMode)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("marketsim exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// clearing: house, optionally journaled to a pebble outbox relayed to Kafka
	houseOpts := []clearing.HouseOption{clearing.WithLogger(logger)}
	var (
		relay       *clearing.Relay
		lastTradeID uint64
	)
	if cfg.Kafka.Enabled() {
		outbox, err := clearing.OpenOutbox(cfg.Clearing.OutboxDir)
		if err != nil {
			return err
		}
		defer outbox.Close()
		lastTradeID = outbox.LastTradeID()

		producer, err := clearing.NewSyncProducer(cfg.Kafka.Brokers)
		if err != nil {
			return err
		}
		relay = clearing.NewRelay(outbox, producer, cfg.Kafka.ClearingTopic, cfg.Clearing.RelayInterval, logger)
		houseOpts = append(houseOpts, clearing.WithJournal(outbox))
	}
	house := clearing.NewHouse(houseOpts...)

	settlement := match.NewAsyncClearingPublisher(house, 0)
	settlement.Start()

	feed := marketdata.NewFeed(marketdata.WithLogger(logger))

	engine := match.NewMatchingEngine(
		match.WithMarketID(cfg.MarketID),
		match.WithPublishLog(feed),
		match.WithClearingPublisher(settlement),
		match.WithCommandBuffer(cfg.EngineBuffer),
		match.WithTradeIDStart(lastTradeID),
	)
	engineDone := make(chan error, 1)
	go func() {
		engineDone <- engine.Start()
	}()

	// order entry
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.GRPCAddr, err)
	}
	grpcServer := grpc.NewServer()
	rpc.Register(grpcServer, rpc.NewServer(engine, logger))
	go func() {
		logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.Error("gRPC server error", "error", err)
		}
	}()

	// market data
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           feed.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	relayCtx, stopRelay := context.WithCancel(context.Background())
	defer stopRelay()
	relayDone := make(chan struct{})
	if relay != nil {
		go func() {
			defer close(relayDone)
			relay.Run(relayCtx)
		}()
	} else {
		close(relayDone)
	}

	// agents trade over the bus when one is configured
	var (
		agentClient   agent.Client = agent.NewEngineClient(engine)
		orderProducer *kafkatransport.OrderProducer
		consumer      *kafkatransport.OrderConsumer
	)
	consumerDone := make(chan error, 1)
	if cfg.Kafka.Enabled() {
		consumer = kafkatransport.NewOrderConsumer(
			kafkatransport.NewReader(cfg.Kafka.Brokers, cfg.Kafka.OrderTopic, cfg.Kafka.GroupID),
			engine,
			logger,
		)
		go func() {
			consumerDone <- consumer.Run(ctx)
		}()

		orderProducer = kafkatransport.NewOrderProducer(
			kafkatransport.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.OrderTopic),
			cfg.MarketID,
			feed,
		)
		agentClient = orderProducer
	} else {
		consumerDone <- nil
	}

	if cfg.SeedBook {
		if err := agent.Seed(ctx, agent.NewEngineClient(engine), cfg.Agents.CenterPrice); err != nil {
			logger.Warn("seeding the book failed", "error", err)
		}
	}

	agents := make([]agent.Agent, 0, cfg.Agents.Count)
	for i := 0; i < cfg.Agents.Count; i++ {
		agents = append(agents, agent.NewRandomAgent(agent.Config{
			CenterPrice: cfg.Agents.CenterPrice,
			Deviance:    cfg.Agents.Deviance,
			MinInterval: cfg.Agents.MinInterval,
			MaxInterval: cfg.Agents.MaxInterval,
		}, time.Now().UnixNano()+int64(i), logger))
	}
	agentsDone := make(chan error, 1)
	go func() {
		agentsDone <- agent.NewSupervisor(agentClient, logger, agents...).Run(ctx)
	}()

	logger.Info("marketsim running", "market_id", cfg.MarketID, "agents", cfg.Agents.Count, "kafka", cfg.Kafka.Enabled())

	<-ctx.Done()
	logger.Info("shutting down")

	var errs []error

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := <-agentsDone; err != nil {
		logger.Warn("agents stopped with error", "error", err)
	}
	if err := <-consumerDone; err != nil {
		errs = append(errs, err)
	}
	if consumer != nil {
		errs = append(errs, consumer.Close())
	}
	if orderProducer != nil {
		errs = append(errs, orderProducer.Close())
	}

	stopGRPC(shutdownCtx, grpcServer)

	if err := engine.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("engine shutdown: %w", err))
	} else {
		errs = append(errs, <-engineDone)
	}
	if err := settlement.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("clearing shutdown: %w", err))
	}

	stopRelay()
	<-relayDone
	if relay != nil {
		errs = append(errs, relay.Close())
	}

	feed.Close()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}

	stats := house.Stats()
	logger.Info("marketsim stopped",
		"seq_id", engine.SequenceID(),
		"settled", stats.Settled,
		"self_trades", stats.SelfTrades,
		"notional", stats.Notional.String(),
	)
	return errors.Join(errs...)
}

// stopGRPC drains in-flight calls, forcing the stop once ctx expires.
func stopGRPC(ctx context.Context, server *grpc.Server) {
	stopped := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-ctx.Done():
		server.Stop()
	}
}
