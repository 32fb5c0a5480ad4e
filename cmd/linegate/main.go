package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sebas/linegate/internal/api"
	"github.com/sebas/linegate/internal/banner"
	"github.com/sebas/linegate/internal/config"
	"github.com/sebas/linegate/internal/events"
	"github.com/sebas/linegate/internal/logger"
	"github.com/sebas/linegate/internal/metrics"
	"github.com/sebas/linegate/internal/sipline"
)

func main() {
	cfg := config.Load()

	logger.InitLogger(os.Stdout)
	logger.SetLevel(cfg.LogLevel)

	collector := metrics.New("linegate")
	recentEvents := events.NewChannelPublisher(0)
	recentEvents.OnDrop(collector.EventDropped)
	publisher := events.NewMultiPublisher(
		events.NewLoggingPublisher(slog.Default()),
		recentEvents,
	)

	service, err := sipline.New(cfg, collector, publisher)
	if err != nil {
		slog.Error("Failed to create SIP line service", "error", err)
		os.Exit(1)
	}
	defer service.Close()

	eventLog := api.NewEventLog(256)
	go eventLog.Consume(recentEvents.Events())

	apiServer := api.NewServer(cfg.APIAddr, service, collector.Handler(), eventLog, service)

	banner.Print("Linegate Connection Service", []banner.ConfigLine{
		{Label: "SIP", Value: fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.SIPPort)},
		{Label: "Advertise", Value: cfg.AdvertiseAddr},
		{Label: "RTP ports", Value: fmt.Sprintf("%d-%d", cfg.RTPPortMin, cfg.RTPPortMax)},
		{Label: "API", Value: cfg.APIAddr},
		{Label: "Multiparty", Value: fmt.Sprintf("%t", cfg.MultipartyCapable)},
		{Label: "Node", Value: cfg.NodeID},
		{Label: "Log level", Value: cfg.LogLevel},
	})

	run(service, apiServer, publisher)
}

func run(service *sipline.Service, apiServer *api.Server, publisher events.Publisher) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := apiServer.Start(); err != nil {
		slog.Error("Failed to start API server", "error", err)
		os.Exit(1)
	}
	defer apiServer.Stop()

	go func() {
		if err := service.Start(ctx); err != nil {
			slog.Error("SIP server error", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	slog.Info("Received signal, shutting down", "signal", sig)
	cancel()

	_ = publisher.Close()
	time.Sleep(1 * time.Second)
}
