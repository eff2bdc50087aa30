package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"github.com/wyfcoding/pkg/logging"
	"github.com/wyfcoding/riskanalytics/internal/risk/application"
	"github.com/wyfcoding/riskanalytics/internal/risk/domain"
	riskcache "github.com/wyfcoding/riskanalytics/internal/risk/infrastructure/cache"
	riskclient "github.com/wyfcoding/riskanalytics/internal/risk/infrastructure/client"
	"github.com/wyfcoding/riskanalytics/internal/risk/infrastructure/messaging"
	"github.com/wyfcoding/riskanalytics/internal/risk/infrastructure/persistence/mysql"
	riskredis "github.com/wyfcoding/riskanalytics/internal/risk/infrastructure/persistence/redis"
	riskhttp "github.com/wyfcoding/riskanalytics/internal/risk/interfaces/http"
	"github.com/wyfcoding/riskanalytics/pkg/metrics"
	"github.com/wyfcoding/riskanalytics/pkg/mq"
	"golang.org/x/sync/errgroup"
	gorm_mysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "configs/risk/config.toml", "path to config file")
	flag.Parse()

	// 1. Config
	viper.SetConfigFile(configPath)
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Sprintf("read config failed: %v", err))
	}

	// 2. Logger
	logger := logging.NewLogger("risk", "main", viper.GetString("log.level"))
	slog.SetDefault(logger.Logger)

	// 3. Database
	dsn := viper.GetString("database.source")
	db, err := gorm.Open(gorm_mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		panic(fmt.Sprintf("connect db failed: %v", err))
	}
	if err := db.AutoMigrate(
		&mysql.RiskSnapshotModel{},
		&mysql.RiskAlertModel{},
		&mysql.RiskLimitModel{},
		&mysql.StressRunModel{},
		&messaging.OutboxMessage{},
	); err != nil {
		panic(fmt.Sprintf("migrate db failed: %v", err))
	}

	// 4. Redis
	redisClient := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    viper.GetStringSlice("redis.addrs"),
		Password: viper.GetString("redis.password"),
	})

	// 5. Metrics
	mtr := metrics.New("risk")
	if err := mtr.Register(); err != nil {
		panic(fmt.Sprintf("register metrics failed: %v", err))
	}

	// 6. Infrastructure
	mdClient := riskclient.NewHTTPMarketDataClient(
		viper.GetString("services.marketdata"),
		viper.GetDuration("services.marketdata_timeout"),
	)
	cachedMarket, err := riskcache.NewCachingMarketData(mdClient, viper.GetDuration("cache.market_ttl"))
	if err != nil {
		panic(fmt.Sprintf("init market cache failed: %v", err))
	}

	engineCfg := domain.DefaultEngineConfig()
	if v := viper.GetFloat64("engine.confidence_level"); v > 0 {
		engineCfg.ConfidenceLevel = v
	}
	if v := viper.GetInt("engine.time_horizon_days"); v > 0 {
		engineCfg.TimeHorizonDays = v
	}
	if v := viper.GetString("engine.method"); v != "" {
		engineCfg.Method = domain.VaRMethod(v)
	}
	if v := viper.GetInt("engine.simulations"); v > 0 {
		engineCfg.Simulations = v
	}
	if v := viper.GetFloat64("engine.risk_free_rate"); v > 0 {
		engineCfg.RiskFreeRate = v
	}
	if v := viper.GetInt("engine.lookback_days"); v > 0 {
		engineCfg.LookbackDays = v
	}
	if err := engineCfg.Validate(); err != nil {
		panic(fmt.Sprintf("invalid engine config: %v", err))
	}

	correlations, err := riskcache.NewCorrelationCalculator(mdClient, engineCfg.LookbackDays, viper.GetDuration("cache.correlation_ttl"))
	if err != nil {
		panic(fmt.Sprintf("init correlation cache failed: %v", err))
	}

	repo := mysql.NewRiskRepository(db, mtr)
	snapshotCache := riskredis.NewSnapshotCache(redisClient, viper.GetDuration("cache.snapshot_ttl"))
	publisher := messaging.NewOutboxEventPublisher(db)

	// 7. Domain engines
	varEngine := domain.NewVaREngine(mdClient, nil, engineCfg.LookbackDays)
	stats := domain.NewPortfolioStatistics(correlations)
	stressEngine := domain.NewStressTestEngine(nil)

	// 8. Application
	assembler := application.NewPositionAssembler(cachedMarket, mtr)
	manager := application.NewRiskManager(
		engineCfg, varEngine, stats, assembler, mdClient,
		mysql.SnapshotStore{RiskRepository: repo},
		mysql.AlertStore{RiskRepository: repo},
		mysql.LimitStore{RiskRepository: repo},
		snapshotCache, publisher, mtr,
	)
	query := application.NewRiskQuery(
		mysql.SnapshotStore{RiskRepository: repo},
		mysql.AlertStore{RiskRepository: repo},
		mysql.LimitStore{RiskRepository: repo},
		snapshotCache,
	)
	stress := application.NewStressTestService(
		stressEngine, assembler,
		mysql.StressStore{RiskRepository: repo},
		publisher, mtr,
	)
	service := application.NewService(manager, query, stress)

	// 9. Interfaces
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(riskhttp.MetricsMiddleware(mtr))

	sys := r.Group("/sys")
	{
		sys.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "UP"}) })
		sys.GET("/ready", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "READY"}) })
	}
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	pp := r.Group("/debug/pprof")
	{
		pp.GET("/", gin.WrapF(pprof.Index))
		pp.GET("/cmdline", gin.WrapF(pprof.Cmdline))
		pp.GET("/profile", gin.WrapF(pprof.Profile))
		pp.GET("/symbol", gin.WrapF(pprof.Symbol))
		pp.GET("/trace", gin.WrapF(pprof.Trace))
	}

	handler := riskhttp.NewRiskHandler(service)
	handler.RegisterRoutes(&r.RouterGroup)

	// 10. Start
	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, ctx := errgroup.WithContext(rootCtx)

	httpPort := viper.GetString("server.http_port")
	if httpPort == "" {
		httpPort = "8087"
	}
	server := &http.Server{Addr: fmt.Sprintf(":%s", httpPort), Handler: r}
	g.Go(func() error {
		slog.Info("HTTP server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	// 周期性监控重算
	g.Go(func() error {
		err := service.RunMonitor(ctx, viper.GetDuration("monitor.interval"))
		if err == context.Canceled {
			return nil
		}
		return err
	})

	// Outbox 中继
	if brokers := viper.GetStringSlice("kafka.brokers"); len(brokers) > 0 {
		producer, err := mq.NewProducer(mq.KafkaConfig{
			Brokers:      brokers,
			MaxRetries:   viper.GetInt("kafka.max_retries"),
			RetryBackoff: viper.GetInt("kafka.retry_backoff"),
		})
		if err != nil {
			panic(fmt.Sprintf("init kafka producer failed: %v", err))
		}
		defer producer.Close()

		relay := messaging.NewOutboxRelay(db, producer, viper.GetString("kafka.topic"), viper.GetDuration("kafka.relay_interval"))
		g.Go(func() error {
			err := relay.Run(ctx)
			if err == context.Canceled {
				return nil
			}
			return err
		})
	}

	// 11. Graceful Shutdown
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
			slog.Info("shutting down servers...")
		case <-ctx.Done():
			slog.Info("context cancelled, shutting down...")
		}
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("server exited with error", "error", err)
	}
}
