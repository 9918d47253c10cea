package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"trivia-duel-service/internal/app"
	"trivia-duel-service/internal/config"
	"trivia-duel-service/internal/domain"
	"trivia-duel-service/internal/infra/memory"
	natsbus "trivia-duel-service/internal/infra/nats"
	"trivia-duel-service/internal/infra/postgres"
	redisinfra "trivia-duel-service/internal/infra/redis"
	transport "trivia-duel-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the game server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// relayFunc pumps events from a shared bus into the local hub until ctx ends.
type relayFunc func(ctx context.Context, hub *memory.Hub) error

type wiring struct {
	engine      *app.Engine
	hub         *memory.Hub
	presence    transport.Presence
	broadcaster app.Broadcaster
	relay       relayFunc
	closers     []func()
}

func (w *wiring) close() {
	for i := len(w.closers) - 1; i >= 0; i-- {
		w.closers[i]()
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return err
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	w, err := wire(ctx, cfg, logger, app.NewMetrics(reg))
	if err != nil {
		return err
	}
	defer w.close()

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	ws := transport.NewWSHandler(w.engine, w.hub, w.presence, w.broadcaster, logger)
	router := transport.NewRouter(transport.NewHandlers(w.engine), ws, transport.RouterOptions{
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		RateLimit:      cfg.HTTP.RateLimit,
		Gatherer:       reg,
	})
	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithFields(logrus.Fields{
			"port":      finalPort,
			"broadcast": cfg.BroadcastDriver(),
		}).Info("starting trivia duel service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if w.relay != nil {
		g.Go(func() error { return w.relay(ctx, w.hub) })
	}
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func wire(ctx context.Context, cfg config.Config, logger *logrus.Logger, metrics *app.Metrics) (*wiring, error) {
	w := &wiring{hub: memory.NewHub(64)}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		w.closers = append(w.closers, func() { _ = redisClient.Close() })
	}

	var (
		store     app.Store
		source    app.QuestionSource
		keys      redisinfra.AnswerKeyLoader
		users     app.IdentityDirectory
		directory app.CategoryDirectory
	)
	if cfg.Postgres.URL != "" {
		db := postgres.Open(cfg.Postgres.URL)
		w.closers = append(w.closers, func() { _ = db.Close() })
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			w.close()
			return nil, err
		}
		w.closers = append(w.closers, pool.Close)
		catalog := postgres.NewCatalog(pool)
		store, source, keys, users, directory = postgres.NewStore(db), catalog, catalog, catalog, catalog
	} else {
		logger.Warn("postgres not configured, using in-memory store with demo questions")
		catalog := demoCatalog()
		store = memory.NewStore(
			domain.GameType{ID: 1, Name: "duel", TotalRounds: 5},
			domain.GameType{ID: 2, Name: "quick_duel", TotalRounds: 3},
			domain.GameType{ID: 3, Name: "group", TotalRounds: 5},
		)
		source, keys, users, directory = catalog, catalog, catalog, catalog
	}

	keyTTL := config.TTLDuration(cfg.Game.AnswerKeyTTL, 10*time.Minute)
	var checker app.AnswerChecker
	if redisClient != nil {
		checker = redisinfra.NewAnswerKeyCache(redisClient, keys, keyTTL)
		w.presence = redisinfra.NewPresence(redisClient, config.TTLDuration(cfg.Redis.TTL, 2*time.Hour))
	} else {
		checker = memory.NewAnswerKeyCache(keys, keyTTL)
		w.presence = memory.NewPresence()
	}

	switch cfg.BroadcastDriver() {
	case config.DriverRedis:
		b := redisinfra.NewBroadcaster(redisClient, logger)
		w.broadcaster = b
		w.relay = func(ctx context.Context, hub *memory.Hub) error { return b.Relay(ctx, hub) }
	case config.DriverNATS:
		conn, err := natsbus.Connect(cfg.NATS.URL, cfg.NATS.Token)
		if err != nil {
			w.close()
			return nil, err
		}
		w.closers = append(w.closers, conn.Close)
		b := natsbus.NewBroadcaster(conn, logger)
		w.broadcaster = b
		w.relay = func(ctx context.Context, hub *memory.Hub) error { return b.Relay(ctx, hub) }
	default:
		w.broadcaster = w.hub
	}

	w.engine = app.NewEngine(app.Deps{
		Store:       store,
		Questions:   app.NewQuestionBank(source, checker),
		Users:       users,
		Categories:  directory,
		Broadcaster: w.broadcaster,
		Logger:      logger,
		Metrics:     metrics,
	}, app.WithSettings(cfg.Settings()))
	return w, nil
}

// demoCatalog seeds a few users and questions for running without Postgres.
func demoCatalog() *memory.Catalog {
	c := memory.NewCatalog()
	c.AddUsers(1, 2, 3, 4)
	seed := []struct {
		category domain.Category
		prompts  [][]string
	}{
		{domain.Category{ID: 1, Name: "Science", Description: "Physics, chemistry and biology"}, [][]string{
			{"What is the chemical symbol for gold?", "Ag", "Au", "Gd", "Go"},
			{"How many bones are in the adult human body?", "186", "206", "226", "196"},
			{"What planet is known as the red planet?", "Venus", "Mars", "Jupiter", "Mercury"},
		}},
		{domain.Category{ID: 2, Name: "History", Description: "From antiquity to today"}, [][]string{
			{"In which year did the Berlin Wall fall?", "1991", "1989", "1985", "1979"},
			{"Who was the first emperor of Rome?", "Julius Caesar", "Augustus", "Nero", "Trajan"},
			{"Which empire built Machu Picchu?", "Aztec", "Inca", "Maya", "Olmec"},
		}},
		{domain.Category{ID: 3, Name: "Geography", Description: "Places and maps"}, [][]string{
			{"What is the capital of Australia?", "Sydney", "Canberra", "Melbourne", "Perth"},
			{"Which river is the longest in Europe?", "Danube", "Volga", "Rhine", "Dnieper"},
			{"Which country has the most islands?", "Norway", "Sweden", "Indonesia", "Canada"},
		}},
	}
	qid := int64(100)
	for _, s := range seed {
		c.AddCategory(s.category)
		for _, p := range s.prompts {
			qid++
			q := domain.Question{ID: qid, CategoryID: s.category.ID, Text: p[0]}
			for i, text := range p[1:] {
				q.Choices = append(q.Choices, domain.Choice{ID: qid*10 + int64(i+1), Text: text})
			}
			// the second listed choice is the correct one
			c.AddQuestion(q, qid*10+2)
		}
	}
	return c
}
