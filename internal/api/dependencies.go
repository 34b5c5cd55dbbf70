package api

import (
	"time"

	"gruppetto/internal/common"
	"gruppetto/internal/config"
	"gruppetto/internal/db"
	"gruppetto/internal/db/repositories"
	"gruppetto/internal/logging"
	"gruppetto/internal/providers"
	"gruppetto/internal/services"
)

type Repositories struct {
	Accounts *repositories.AccountRepo
	Sessions *repositories.SessionRepo
	Batches  *repositories.BatchRepo
	Results  *repositories.RaceResultRepo
	Logs     *repositories.SyncLogRepo
}

type Services struct {
	Cache    common.CacheInterface
	Provider providers.ActivityProvider
	Creds    *services.CredentialManager
	Budget   *services.RateBudgetTracker
	Sync     *services.SyncService
}

type Dependencies struct {
	Cfg      *config.Config
	Repo     *Repositories
	Services *Services
}

func InitDependencies(cfg *config.Config) (*Dependencies, error) {

	repos := &Repositories{
		Accounts: repositories.NewAccountRepo(db.PgDB),
		Sessions: repositories.NewSessionRepo(db.PgDB),
		Batches:  repositories.NewBatchRepo(db.PgDB),
		Results:  repositories.NewRaceResultRepo(db.PgDB),
		Logs:     repositories.NewSyncLogRepo(db.DB),
	}

	// Redis when configured, in-process cache otherwise. The budget
	// tracker only needs a shared counter with TTL, so either works.
	var cache common.CacheInterface
	if cfg.RedisHost != "" {
		redisCache, err := common.NewRedisCacheService(cfg.RedisHost, cfg.RedisPort, cfg.RedisPassword)
		if err != nil {
			logging.Warn("Redis unavailable, falling back to in-memory cache", "error", err.Error())
			cache = common.NewCacheService(5*time.Minute, 10*time.Minute)
		} else {
			cache = redisCache
		}
	} else {
		cache = common.NewCacheService(5*time.Minute, 10*time.Minute)
	}

	provider := providers.NewStravaProvider(
		cfg.UpstreamBaseURL,
		cfg.UpstreamTokenURL,
		cfg.UpstreamClientID,
		cfg.UpstreamClientSecret,
	)

	svcs := &Services{
		Cache:    cache,
		Provider: provider,
		Creds:    services.NewCredentialManager(repos.Accounts, provider),
		Budget:   services.NewRateBudgetTracker(cache, cfg.QuotaWindowReserve, cfg.QuotaDailyReserve),
		Sync:     services.NewSyncService(repos.Accounts, repos.Sessions, repos.Batches),
	}

	return &Dependencies{
		Cfg:      cfg,
		Repo:     repos,
		Services: svcs,
	}, nil
}
