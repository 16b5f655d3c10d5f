package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/RoseGit/MasterBlockchain/internal/config"
	"github.com/RoseGit/MasterBlockchain/internal/core/application/orchestrator"
	"github.com/RoseGit/MasterBlockchain/internal/core/domain"
	"github.com/RoseGit/MasterBlockchain/internal/core/ports"
	"github.com/RoseGit/MasterBlockchain/internal/infrastructure/chain/ethrpc"
	"github.com/RoseGit/MasterBlockchain/internal/infrastructure/custody"
	"github.com/RoseGit/MasterBlockchain/internal/infrastructure/indicator"
	dbbadger "github.com/RoseGit/MasterBlockchain/internal/infrastructure/storage/db/badger"
	"github.com/RoseGit/MasterBlockchain/internal/infrastructure/storage/db/inmemory"
	"github.com/RoseGit/MasterBlockchain/internal/infrastructure/storage/db/secure"
	"github.com/RoseGit/MasterBlockchain/internal/infrastructure/surface"
	wsinterface "github.com/RoseGit/MasterBlockchain/internal/interfaces/ws"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := config.InitConfig(); err != nil {
		log.WithError(err).Fatal("failed to load config")
	}

	store, err := newStore()
	if err != nil {
		log.WithError(err).Fatal("failed to open store")
	}
	defer store.Close()

	custodySvc, err := custody.NewService(config.GetString(config.BaseDerivationPathKey))
	if err != nil {
		log.WithError(err).Fatal("failed to init key custody")
	}

	endpoints, err := config.GetEndpoints()
	if err != nil {
		log.WithError(err).Fatal("invalid rpc endpoints")
	}
	chains := ethrpc.NewProvider(ethrpc.Options{
		RateLimit:      config.GetInt(config.ChainRPCRateLimitKey),
		RequestTimeout: config.GetSeconds(config.ChainRPCTimeoutKey),
	})
	defer ethrpc.Close(chains)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	badge, err := indicator.NewIndicator(registry)
	if err != nil {
		log.WithError(err).Fatal("failed to init pending indicator")
	}

	windows := surface.NewManager()
	hub := wsinterface.NewHub()

	walletSvc, err := orchestrator.NewService(orchestrator.Options{
		Store:                store,
		Custody:              custodySvc,
		Chains:               chains,
		Windows:              windows,
		Broadcaster:          hub,
		Indicator:            badge,
		Endpoints:            endpoints,
		FallbackEndpoint:     config.GetString(config.FallbackRPCEndpointKey),
		DefaultChainId:       config.GetString(config.DefaultChainIdKey),
		ApprovalTimeout:      config.GetSeconds(config.ApprovalTimeoutKey),
		ConnectionTimeout:    config.GetSeconds(config.ConnectionTimeoutKey),
		DefaultAccountsCount: config.GetInt(config.DefaultAccountsCountKey),
	})
	if err != nil {
		log.WithError(err).Fatal("failed to init orchestrator")
	}

	metricsAddress := ""
	if port := config.GetInt(config.MetricsListeningPortKey); port > 0 {
		metricsAddress = fmt.Sprintf(":%d", port)
	}
	svc, err := wsinterface.NewService(wsinterface.ServiceOpts{
		Address:         fmt.Sprintf(":%d", config.GetInt(config.RPCListeningPortKey)),
		MetricsAddress:  metricsAddress,
		Wallet:          walletSvc,
		Hub:             hub,
		Windows:         windows,
		OriginRateLimit: config.GetFloat(config.OriginRateLimitKey),
		OriginRateBurst: config.GetInt(config.OriginRateBurstKey),
		Registerer:      registry,
		Gatherer:        registry,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to init interface")
	}

	ctx, stop := signal.NotifyContext(
		context.Background(), syscall.SIGTERM, syscall.SIGINT, os.Interrupt,
	)
	defer stop()

	if err := walletSvc.Start(ctx); err != nil {
		log.WithError(err).Fatal("failed to start orchestrator")
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(svc.Start)
	eg.Go(func() error {
		<-ctx.Done()
		return nil
	})

	log.Info("wallet daemon started")

	if err := eg.Wait(); err != nil {
		log.WithError(err).Error("wallet daemon failed")
	}

	log.Info("shutting down wallet daemon")
	walletSvc.Stop()
	svc.Stop()
	log.Info("exiting")
}

func newStore() (ports.Store, error) {
	var store ports.Store
	var err error

	dbDir := config.GetDbDir()
	if dbDir == "" {
		store = inmemory.NewStore()
	} else {
		store, err = dbbadger.NewStore(dbDir, log.StandardLogger())
		if err != nil {
			return nil, err
		}
	}

	passphrase := config.GetString(config.SecretPassphraseKey)
	if passphrase == "" {
		return store, nil
	}
	secured, err := secure.NewStore(store, passphrase, domain.SecretKey)
	if err != nil {
		store.Close()
		return nil, err
	}
	return secured, nil
}
