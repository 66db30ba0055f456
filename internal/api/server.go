package api

import (
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"trackmybus/internal/auth"
	"trackmybus/internal/config"
	"trackmybus/internal/feed"
	"trackmybus/internal/reputation"
	"trackmybus/internal/store"
)

type Server struct {
	Store  store.Store
	Feed   *feed.Service
	Auth   *auth.Verifier
	Broker EventBroker
	Log    zerolog.Logger

	limMu     sync.Mutex
	limiters  map[string]*rate.Limiter
	rateRPS   rate.Limit
	rateBurst int
}

// NewServer wires storage, broker, auth, and the feed service from cfg.
// Without DATABASE_URL everything runs on the in-memory store; with it the
// memory store becomes the degraded-mode fallback behind Failover.
func NewServer(cfg config.Config, log zerolog.Logger) (*Server, error) {
	mem := store.NewMemory()
	var st store.Store = mem
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		pg, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if cfg.MigrationsDir != "" {
			if err := pg.MigrateDir(cfg.MigrationsDir); err != nil {
				log.Warn().Err(err).Msg("migrations failed")
			}
		}
		st = store.NewFailover(pg, mem, cfg.StoreTimeout, log)
	}

	var broker EventBroker
	if cfg.RedisURL != "" {
		rb, err := NewRedisBroker(cfg.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("redis broker unavailable, using in-process broker")
			broker = NewBroker()
		} else {
			broker = rb
		}
	} else {
		broker = NewBroker()
	}

	rep := reputation.NewRecorder(st, log)
	svc := feed.NewService(st, &EventPublisher{Broker: broker}, rep, log)

	return &Server{
		Store:     st,
		Feed:      svc,
		Auth:      auth.NewVerifierFromEnv(),
		Broker:    broker,
		Log:       log,
		limiters:  map[string]*rate.Limiter{},
		rateRPS:   rate.Limit(cfg.RateRPS),
		rateBurst: cfg.RateBurst,
	}, nil
}

// allow reports whether userID is within its submission rate budget.
func (s *Server) allow(userID string) bool {
	if s.rateRPS <= 0 {
		return true
	}
	s.limMu.Lock()
	lim := s.limiters[userID]
	if lim == nil {
		lim = rate.NewLimiter(s.rateRPS, s.rateBurst)
		s.limiters[userID] = lim
	}
	s.limMu.Unlock()
	return lim.Allow()
}
