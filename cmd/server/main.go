package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"primegate/internal/audit"
	"primegate/internal/authz"
	"primegate/internal/identity/localidp"
	"primegate/internal/platform/config"
	"primegate/internal/platform/httpserver"
	"primegate/internal/platform/logger"
	"primegate/internal/platform/metrics"
	"primegate/internal/records"
	"primegate/internal/registration"
	"primegate/internal/session"
	"primegate/internal/session/revocation"
	httptransport "primegate/internal/transport/http"
)

// main wires dependencies and owns the process lifecycle. Business rules live
// in the internal services; nothing here makes an authorization decision.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// Empty DSN selects the in-memory stores; useful for local development and
	// throwaway environments.
	var userStore records.Store = records.NewInMemoryStore()
	var auditStore audit.Store = audit.NewInMemoryStore()
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer db.Close()

		pgUsers, err := records.NewPostgresStore(db, cfg.RecordsCollection)
		if err != nil {
			return err
		}
		if err := pgUsers.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate user records: %w", err)
		}
		pgAudit := audit.NewPostgresStore(db)
		if err := pgAudit.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate audit entries: %w", err)
		}
		userStore, auditStore = pgUsers, pgAudit
		log.Info("using postgres stores", "table", cfg.RecordsCollection)
	}

	var auditOpts []audit.Option
	if len(cfg.KafkaBrokers) > 0 {
		mirror, err := audit.NewKafkaMirror(cfg.KafkaBrokers, cfg.AuditTopic, log)
		if err != nil {
			return fmt.Errorf("connect kafka mirror: %w", err)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = mirror.Close(flushCtx)
		}()
		auditOpts = append(auditOpts, audit.WithMirror(mirror))
		log.Info("mirroring audit entries to kafka", "topic", cfg.AuditTopic)
	}
	auditLog := audit.NewLog(auditStore, log, auditOpts...)

	defaultRole, err := records.ParseRole(cfg.DefaultRole)
	if err != nil {
		return fmt.Errorf("invalid default role %q", cfg.DefaultRole)
	}

	idp := localidp.New(cfg.JWTSigningKey, cfg.TokenTTL)
	engine := authz.NewEngine(userStore, auditLog, cfg.OwnerEmail, log, m)
	regService := registration.NewService(idp, userStore, auditLog, cfg.OwnerEmail, defaultRole, log, m)

	var revoked revocation.List = revocation.NewInMemoryList()
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		revoked = revocation.NewRedisList(rdb)
		log.Info("using redis token revocation list", "addr", cfg.RedisAddr)
	}
	gate := session.NewGate(idp, engine, revoked, cfg.TokenTTL, log, m)

	router := httptransport.NewRouter(
		httptransport.NewAuthHandler(regService, gate, log),
		httptransport.NewAdminHandler(engine, log),
		gate,
		idp,
		log,
	)
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr, "owner_email", cfg.OwnerEmail)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
