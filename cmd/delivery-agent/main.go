// README: Entry point; loads config, wires the role's modules, serves the local API and runs the background loops.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"delivery/internal/backend"
	"delivery/internal/config"
	"delivery/internal/feed"
	httptransport "delivery/internal/http"
	"delivery/internal/infra"
	"delivery/internal/maps"
	"delivery/internal/modules/cart"
	"delivery/internal/modules/checkout"
	"delivery/internal/modules/location"
	"delivery/internal/modules/order"
	"delivery/internal/modules/pricing"
	"delivery/internal/notify"
)

const (
	flushTimeout   = 5 * time.Second
	cartLoadRetry  = 5 * time.Second
	journalEntries = 200
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := infra.NewLogger(cfg.Log.Level, cfg.Log.Dev)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	if !cfg.Log.Dev {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("agent stopped", zap.Error(err))
	}
	logger.Info("agent stopped")
}

// resources holds the lazily opened shared connections.
type resources struct {
	cfg   config.Config
	db    *pgxpool.Pool
	redis *redis.Client
	amqp  *infra.AMQP
}

func (r *resources) pool(ctx context.Context) (*pgxpool.Pool, error) {
	if r.db == nil {
		db, err := infra.NewDB(ctx, r.cfg.DB.DSN)
		if err != nil {
			return nil, err
		}
		r.db = db
	}
	return r.db, nil
}

func (r *resources) redisClient(ctx context.Context) (*redis.Client, error) {
	if r.redis == nil {
		c, err := infra.NewRedis(ctx, r.cfg.Redis.Addr, r.cfg.Redis.Password)
		if err != nil {
			return nil, err
		}
		r.redis = c
	}
	return r.redis, nil
}

func (r *resources) close() {
	r.amqp.Close()
	if r.redis != nil {
		_ = r.redis.Close()
	}
	if r.db != nil {
		r.db.Close()
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	res := &resources{cfg: cfg}
	defer res.close()

	client := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.Token, cfg.Backend.Timeout, logger)
	deps := httptransport.Deps{Token: cfg.HTTP.Token, Log: logger}

	g, gctx := errgroup.WithContext(ctx)
	nudgers := map[string]feed.Nudger{}
	var cartSvc *cart.Service

	switch cfg.Role {
	case backend.RoleCustomer:
		kv, err := cartKV(ctx, res)
		if err != nil {
			return err
		}
		cartSvc = cart.NewService(kv, cfg.Cart.Key, logger)
		g.Go(func() error {
			loadCart(gctx, cartSvc, logger)
			return nil
		})

		distance, err := routing(cfg, logger)
		if err != nil {
			return err
		}
		calc := checkout.NewCalculator(client, distance, pricing.NewService(pricing.DefaultRate), logger)
		if cfg.Routing.GoogleKey != "" {
			geo, err := maps.NewGeocodeService(cfg.Routing.GoogleKey, cfg.Routing.Region)
			if err != nil {
				return err
			}
			calc.WithGeocoder(geo)
		}
		deps.Cart = cartSvc
		deps.Addresses = client
		deps.Payments = client
		deps.Quoter = calc
		deps.Submitter = checkout.NewSubmitter(client, cartSvc, cfg.Payments.BsExchangeRate, cfg.Payments.CallingCode, logger)

	case backend.RoleDriver:
		notifier, journal, err := decisionSinks(ctx, res, logger)
		if err != nil {
			return err
		}
		src := order.NewDriverSource(client)
		w := order.NewWatcher(order.Config{
			Role:            backend.RoleDriver,
			Interval:        cfg.Driver.Interval,
			DecisionWindow:  cfg.Driver.DecisionWindow,
			RejectOnTimeout: cfg.Driver.RejectOnTimeout,
			StartDisabled:   true,
		}, src, logger).WithNotifier(notifier).WithJournal(journal).
			OnAccepted(func(ctx context.Context, o backend.Order) {
				if err := src.RefreshAssigned(ctx); err != nil {
					logger.Warn("assigned orders refresh failed", zap.String("order_id", o.ID), zap.Error(err))
				}
			})

		positions, err := positionStore(ctx, res)
		if err != nil {
			return err
		}
		reporter := location.NewReporter(client, positions, cfg.Location.Period, logger)
		avail := location.NewAvailability(client, logger, w, reporter)
		if _, err := avail.Refresh(ctx); err != nil {
			logger.Warn("driver state unavailable, staying off duty", zap.Error(err))
		}
		if err := src.RefreshAssigned(ctx); err != nil {
			logger.Warn("assigned orders unavailable", zap.Error(err))
		}

		g.Go(func() error { w.Run(gctx); return nil })
		g.Go(func() error { reporter.Run(gctx); return nil })
		nudgers[backend.RoleDriver] = w

		deps.Watchers = append(deps.Watchers, w)
		deps.Availability = avail
		deps.Reporter = reporter
		deps.DriverSource = src

	case backend.RoleMerchant:
		notifier, journal, err := decisionSinks(ctx, res, logger)
		if err != nil {
			return err
		}
		w := order.NewWatcher(order.Config{
			Role:            backend.RoleMerchant,
			Interval:        cfg.Merchant.Interval,
			DecisionWindow:  cfg.Merchant.DecisionWindow,
			RejectOnTimeout: cfg.Merchant.RejectOnTimeout,
		}, order.NewMerchantSource(client), logger).WithNotifier(notifier).WithJournal(journal)

		g.Go(func() error { w.Run(gctx); return nil })
		nudgers[backend.RoleMerchant] = w

		deps.Watchers = append(deps.Watchers, w)
		deps.MerchantOrders = client

	default:
		return fmt.Errorf("unknown role %q", cfg.Role)
	}

	if cfg.AMQP.URL != "" && len(nudgers) > 0 {
		conn, err := infra.NewAMQP(cfg.AMQP.URL)
		if err != nil {
			// polling still works without the feed
			logger.Warn("order feed disabled", zap.Error(err))
		} else {
			res.amqp = conn
			nudger := feed.NewAMQPNudger(conn.Channel, cfg.AMQP.Queue, nudgers, logger)
			g.Go(func() error {
				if err := nudger.Run(gctx); err != nil {
					logger.Warn("order feed stopped", zap.Error(err))
				}
				return nil
			})
		}
	}

	srv := httptransport.NewServer(cfg.HTTP.Addr, httptransport.NewRouter(deps), logger)
	g.Go(func() error { return srv.Run(gctx) })

	logger.Info("agent started", zap.String("role", cfg.Role), zap.String("addr", cfg.HTTP.Addr))
	err := g.Wait()

	if cartSvc != nil {
		flushCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()
		if cerr := cartSvc.Close(flushCtx); cerr != nil {
			logger.Warn("cart flush on shutdown failed", zap.Error(cerr))
		}
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// loadCart retries until the cart is readable; mutations fail with
// ErrNotLoaded meanwhile.
func loadCart(ctx context.Context, c *cart.Service, logger *zap.Logger) {
	for {
		err := c.Load(ctx)
		if err == nil {
			return
		}
		logger.Warn("cart load failed, retrying", zap.Error(err))
		select {
		case <-ctx.Done():
			return
		case <-time.After(cartLoadRetry):
		}
	}
}

func cartKV(ctx context.Context, res *resources) (cart.KV, error) {
	switch res.cfg.Cart.Backend {
	case "redis":
		c, err := res.redisClient(ctx)
		if err != nil {
			return nil, err
		}
		return cart.NewRedisKV(c, "delivery:", res.cfg.Cart.TTL), nil
	case "postgres":
		db, err := res.pool(ctx)
		if err != nil {
			return nil, err
		}
		kv := cart.NewPostgresKV(db)
		if err := kv.Migrate(ctx); err != nil {
			return nil, err
		}
		return kv, nil
	case "memory", "":
		return cart.NewMemoryKV(), nil
	}
	return nil, fmt.Errorf("unknown cart backend %q", res.cfg.Cart.Backend)
}

func routing(cfg config.Config, logger *zap.Logger) (maps.DistanceProvider, error) {
	switch cfg.Routing.Provider {
	case "google":
		return maps.NewRouteService(cfg.Routing.GoogleKey)
	case "osrm":
		return maps.NewOSRMService(cfg.Routing.OSRMURL, cfg.Backend.Timeout), nil
	case "straight":
		logger.Info("routing by straight-line distance")
		return maps.StraightLine{Detour: 1.3}, nil
	}
	return nil, fmt.Errorf("unknown routing provider %q", cfg.Routing.Provider)
}

func positionStore(ctx context.Context, res *resources) (location.Store, error) {
	if res.cfg.Location.Store != "redis" {
		return location.NewMemoryStore(), nil
	}
	c, err := res.redisClient(ctx)
	if err != nil {
		return nil, err
	}
	return location.NewRedisStore(c, res.cfg.Location.DriverKey), nil
}

func decisionSinks(ctx context.Context, res *resources, logger *zap.Logger) (notify.Notifier, order.Journal, error) {
	sinks := notify.Multi{notify.NewLog(logger)}
	if res.cfg.Firebase.DeviceToken != "" {
		fcm, err := infra.NewMessagingClient(ctx, res.cfg.Firebase.CredentialsFile)
		if err != nil {
			logger.Warn("push alerts disabled", zap.Error(err))
		} else {
			sinks = append(sinks, notify.NewFCM(fcm, res.cfg.Firebase.DeviceToken))
		}
	}

	if res.cfg.Journal != "postgres" {
		return sinks, order.NewMemoryJournal(journalEntries), nil
	}
	db, err := res.pool(ctx)
	if err != nil {
		return nil, nil, err
	}
	store := order.NewStore(db)
	if err := store.Migrate(ctx); err != nil {
		return nil, nil, err
	}
	return sinks, store, nil
}
