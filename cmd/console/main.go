package main

import (
	"context"
	"errors"
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
	"golang.org/x/sync/errgroup"

	contractapp "github.com/wyfcoding/basistrading/internal/contract/application"
	contractdomain "github.com/wyfcoding/basistrading/internal/contract/domain"
	"github.com/wyfcoding/basistrading/internal/contract/infrastructure/marketdata"
	contractmysql "github.com/wyfcoding/basistrading/internal/contract/infrastructure/persistence/mysql"
	contracthttp "github.com/wyfcoding/basistrading/internal/contract/interfaces/http"
	listingapp "github.com/wyfcoding/basistrading/internal/listing/application"
	listingdomain "github.com/wyfcoding/basistrading/internal/listing/domain"
	listingmysql "github.com/wyfcoding/basistrading/internal/listing/infrastructure/persistence/mysql"
	listinghttp "github.com/wyfcoding/basistrading/internal/listing/interfaces/http"
	orderapp "github.com/wyfcoding/basistrading/internal/order/application"
	orderdomain "github.com/wyfcoding/basistrading/internal/order/domain"
	ordermysql "github.com/wyfcoding/basistrading/internal/order/infrastructure/persistence/mysql"
	orderhttp "github.com/wyfcoding/basistrading/internal/order/interfaces/http"
	"github.com/wyfcoding/basistrading/internal/rules"
	warehouseapp "github.com/wyfcoding/basistrading/internal/warehouse/application"
	warehousedomain "github.com/wyfcoding/basistrading/internal/warehouse/domain"
	warehousemysql "github.com/wyfcoding/basistrading/internal/warehouse/infrastructure/persistence/mysql"
	warehousehttp "github.com/wyfcoding/basistrading/internal/warehouse/interfaces/http"
	"github.com/wyfcoding/basistrading/pkg/cache"
	"github.com/wyfcoding/basistrading/pkg/config"
	"github.com/wyfcoding/basistrading/pkg/db"
	"github.com/wyfcoding/basistrading/pkg/logger"
	"github.com/wyfcoding/basistrading/pkg/metrics"
	"github.com/wyfcoding/basistrading/pkg/middleware"
	"github.com/wyfcoding/basistrading/pkg/mq"
	"github.com/wyfcoding/basistrading/pkg/ratelimit"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "configs/console/config.toml", "path to config file")
	flag.Parse()

	// 1. Config
	cfg, err := config.Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("load config failed: %v", err))
	}

	// 2. Logger
	if err := logger.Init(cfg.Logger); err != nil {
		panic(fmt.Sprintf("init logger failed: %v", err))
	}
	log := logger.Get()

	// 3. Business rules
	ruleSet, err := rules.New(cfg.Rules)
	if err != nil {
		log.Error("invalid rules config", "error", err)
		os.Exit(1)
	}

	// 4. Database
	database, err := db.Init(db.Config{
		Driver:             cfg.Database.Driver,
		DSN:                cfg.Database.DSN,
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		MaxIdleConns:       cfg.Database.MaxIdleConns,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		LogEnabled:         cfg.Database.LogEnabled,
		SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
	})
	if err != nil {
		log.Error("connect database failed", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := database.AutoMigrate(
		&listingdomain.Listing{},
		&listingdomain.DelistingRecord{},
		&orderdomain.Order{},
		&contractdomain.Contract{},
		&contractdomain.MarginPayment{},
		&warehousedomain.Warehouse{},
	); err != nil {
		log.Error("migrate database failed", "error", err)
		os.Exit(1)
	}

	// 5. Optional infrastructure
	var (
		redisCache  *cache.RedisCache
		limiter     ratelimit.Limiter
		priceSource contractdomain.PriceSource
	)
	if cfg.Redis.Enabled {
		redisCache, err = cache.New(cache.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			MaxPoolSize:  cfg.Redis.MaxPoolSize,
			ConnTimeout:  cfg.Redis.ConnTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			log.Error("connect redis failed", "error", err)
			os.Exit(1)
		}
		defer redisCache.Close()
		limiter = ratelimit.NewRedisLimiter(redisCache.Client())
		priceSource = marketdata.NewRedisPriceSource(redisCache)
	}

	var publisher eventPublisher = &nopPublisher{logger: log}
	if cfg.Kafka.Enabled {
		producer, err := mq.NewProducer(mq.Config{
			Brokers:      cfg.Kafka.Brokers,
			MaxRetries:   cfg.Kafka.MaxRetries,
			RetryBackoff: cfg.Kafka.RetryBackoff,
		})
		if err != nil {
			log.Error("connect kafka failed", "error", err)
			os.Exit(1)
		}
		defer producer.Close()
		publisher = &kafkaPublisher{producer: producer}
	}

	m := metrics.New(cfg.ServiceName)

	// 6. Repositories and services
	listingRepo := listingmysql.NewListingRepository(database)
	delistRepo := listingmysql.NewDelistingRepository(database)
	orderRepo := ordermysql.NewOrderRepository(database)
	contractRepo := contractmysql.NewContractRepository(database)
	paymentRepo := contractmysql.NewPaymentRepository(database)
	warehouseRepo := warehousemysql.NewWarehouseRepository(database)

	listingService := listingapp.NewService(listingRepo, delistRepo, ruleSet, publisher, m, log)
	contractService := contractapp.NewService(contractRepo, paymentRepo, ruleSet, publisher, m, log)
	orderService := orderapp.NewService(
		orderRepo, listingRepo, contractRepo, ruleSet, limiter, publisher, m, log)
	warehouseService := warehouseapp.NewService(warehouseRepo, log)

	// 7. HTTP server
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(middleware.GinLogging(), middleware.GinRecovery(), middleware.GinMetrics(m))

	api := router.Group("/api/v1")
	listinghttp.NewHandler(listingService).RegisterRoutes(api)
	orderhttp.NewHandler(orderService).RegisterRoutes(api)
	contracthttp.NewHandler(contractService).RegisterRoutes(api)
	warehousehttp.NewHandler(warehouseService).RegisterRoutes(api)

	router.GET("/sys/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/sys/ready", func(c *gin.Context) {
		sqlDB, err := database.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	router.GET("/metrics", gin.WrapH(m.Handler()))
	router.GET("/debug/pprof/*path", gin.WrapH(http.HandlerFunc(pprof.Index)))

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	// 8. Run
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if priceSource != nil {
		monitor := contractapp.NewMarginMonitor(
			contractService, contractRepo, priceSource, time.Minute, log)
		g.Go(func() error {
			log.Info("margin monitor starting")
			err := monitor.Run(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

// eventPublisher 领域事件发布端口，各上下文共用同一签名
type eventPublisher interface {
	Publish(ctx context.Context, topic, key string, payload any) error
}

type kafkaPublisher struct {
	producer *mq.Producer
}

func (p *kafkaPublisher) Publish(ctx context.Context, topic, key string, payload any) error {
	return p.producer.SendMessage(ctx, topic, key, payload)
}

// nopPublisher Kafka 未启用时仅记日志
type nopPublisher struct {
	logger *slog.Logger
}

func (p *nopPublisher) Publish(_ context.Context, topic, key string, _ any) error {
	p.logger.Debug("event dropped, kafka disabled", "topic", topic, "key", key)
	return nil
}
