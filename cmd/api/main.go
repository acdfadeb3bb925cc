package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ovaphlow/pitchfork/service-social/internal/auth"
	"github.com/ovaphlow/pitchfork/service-social/internal/enrichment"
	"github.com/ovaphlow/pitchfork/service-social/internal/post"
	postrepo "github.com/ovaphlow/pitchfork/service-social/internal/post/repo"
	"github.com/ovaphlow/pitchfork/service-social/internal/router"
	"github.com/ovaphlow/pitchfork/service-social/internal/token"
	"github.com/ovaphlow/pitchfork/service-social/internal/user"
	userrepo "github.com/ovaphlow/pitchfork/service-social/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-social/pkg/database"
	"github.com/ovaphlow/pitchfork/service-social/pkg/utilities"
)

func main() {
	// best-effort: a missing .env just means the real environment is used
	_ = godotenv.Load()

	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()
	sugar := lg.Sugar()

	if err := run(sugar); err != nil {
		sugar.Errorw("service stopped", "err", err)
		_ = lg.Sync()
		os.Exit(1)
	}
	sugar.Info("goodbye")
}

func run(logger *zap.SugaredLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting service-social")

	tokenCfg, err := token.ConfigFromEnv()
	if err != nil {
		return err
	}

	db, err := database.Connect(ctx, database.ConfigFromEnv())
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer db.Close()

	users := userrepo.NewUserRepo(db)
	meta := userrepo.NewMetaDataRepo(db)
	posts := postrepo.NewPostRepo(db)
	// users first: the other tables reference it
	for _, t := range []interface{ EnsureTable(context.Context) error }{users, meta, posts} {
		if err := t.EnsureTable(ctx); err != nil {
			return fmt.Errorf("ensure tables: %w", err)
		}
	}

	enrichCfg := enrichment.ConfigFromEnv()
	var geoCache enrichment.GeoCache
	if enrichCfg.RedisURL != "" {
		rdb, err := enrichment.NewRedisClient(ctx, enrichCfg.RedisURL)
		if err != nil {
			logger.Warnw("geo cache disabled", "err", err)
		} else {
			defer rdb.Close()
			geoCache = enrichment.NewRedisGeoCache(rdb, enrichCfg.GeoCacheTTL, logger)
		}
	}
	pool := enrichment.NewPool(enrichCfg, enrichment.NewClient(enrichCfg, geoCache, logger), meta, logger)

	codec := token.NewCodec(tokenCfg)
	issuer := token.NewIssuer(codec)

	userSvc := user.NewUserService(users, meta, issuer, pool, user.BcryptHasher{}, logger)
	postSvc := post.NewPostService(posts, users, meta, logger)

	routerCfg := router.ConfigFromEnv()
	srv := &http.Server{
		Addr: routerCfg.Addr,
		Handler: router.RegisterRoutes(logger, routerCfg, router.Deps{
			Resolver: auth.NewResolver(codec, users, logger),
			Renewer:  auth.NewRenewer(codec, issuer, tokenCfg.RenewalLookAhead, logger),
			Users:    user.NewHandler(userSvc, logger),
			Posts:    post.NewHandler(postSvc, logger),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infow("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return pool.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warnw("http server shutdown failed", "err", err)
		}
		return nil
	})
	return g.Wait()
}
