package main

import (
	"context"
	"errors"
	"fmt"
	"github.com/cloudflare/cfssl/log"
	"github.com/spf13/cobra"
	"github.com/ssbcStaker/account"
	"github.com/ssbcStaker/client"
	"github.com/ssbcStaker/common"
	"github.com/ssbcStaker/config"
	"github.com/ssbcStaker/contract"
	"github.com/ssbcStaker/contract/beneficiary"
	"github.com/ssbcStaker/deploy"
	"github.com/ssbcStaker/event"
	"github.com/ssbcStaker/levelDB"
	"github.com/ssbcStaker/redis"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the staking pool node and its HTTP client API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func deployCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deploy",
		Short: "generate fresh contract addresses and write the address book",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			deployments, err := deploy.Deploy(cfg.Deploy.Output, cfg.Chain.ID)
			if err != nil {
				return err
			}
			pool, benef, err := deploy.Addresses(deployments, cfg.Chain.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n%s %s\n",
				common.BeneficiaryContractName, benef, common.StakerContractName, pool)
			return nil
		},
	}
}

func beneficiaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "beneficiary",
		Short: "run the beneficiary contract as a standalone HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			deployments, err := deploy.Ensure(cfg.Deploy.Output, cfg.Chain.ID)
			if err != nil {
				return err
			}
			_, benef, err := deploy.Addresses(deployments, cfg.Chain.ID)
			if err != nil {
				return err
			}
			srv := &http.Server{
				Addr:              cfg.Beneficiary.Listen,
				Handler:           beneficiary.NewRouter(beneficiary.NewContract(benef)),
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      10 * time.Second,
			}
			return runHTTP(cmd.Context(), srv)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	db, err := levelDB.InitDB(cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	accounts := account.NewState(db)
	if err := accounts.GetFromDisk(); err != nil {
		return err
	}
	events, closeEvents, err := newEventLog(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer closeEvents()

	deployments, err := deploy.Ensure(cfg.Deploy.Output, cfg.Chain.ID)
	if err != nil {
		return err
	}
	poolAddr, benefAddr, err := deploy.Addresses(deployments, cfg.Chain.ID)
	if err != nil {
		return err
	}

	var benef contract.Beneficiary
	switch cfg.Beneficiary.Mode {
	case config.BeneficiaryRemote:
		log.Infof("beneficiary contract at %s", cfg.Beneficiary.URL)
		benef = beneficiary.NewHTTPClient(cfg.Beneficiary.URL, cfg.Beneficiary.Timeout)
	default:
		benef = beneficiary.NewContract(benefAddr)
	}

	threshold, err := cfg.ThresholdWei()
	if err != nil {
		return err
	}
	faucet, err := cfg.FaucetWei()
	if err != nil {
		return err
	}
	feed := event.NewFeed()
	svc, err := contract.NewService(contract.Options{
		PoolAddress:        poolAddr,
		BeneficiaryAddress: benefAddr,
		Threshold:          threshold,
		Duration:           cfg.Pool.Duration,
		Beneficiary:        benef,
		Accounts:           accounts,
		Events:             events,
		Feed:               feed,
		DB:                 db,
		InitBalance:        faucet,
	})
	if err != nil {
		return err
	}

	r := client.NewRouter(svc, feed, client.Options{
		SSLRedirect: cfg.Server.SSLRedirect,
		SSLHost:     cfg.Server.SSLHost,
		Deployments: deployments,
	})
	return client.ListenRequest(cfg.Server.Listen, r)
}

// 按配置选择 Stake 事件的存储后端，返回的函数释放后端持有的连接
func newEventLog(ctx context.Context, cfg *config.Config, db *levelDB.DB) (event.Log, func(), error) {
	switch cfg.Event.Backend {
	case config.EventMemory:
		return event.NewMemoryLog(), func() {}, nil
	case config.EventRedis:
		rc := redis.NewClient(redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rc.Ping(ctx); err != nil {
			_ = rc.Close()
			return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
		}
		return event.NewRedisLog(rc, common.StakeLogRedisKey), func() { _ = rc.Close() }, nil
	default:
		return event.NewLevelLog(db), func() {}, nil
	}
}

// 运行 srv 直到收到退出信号
func runHTTP(ctx context.Context, srv *http.Server) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
