package database

import (
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// RegisterMetrics exposes pgxpool statistics, read at scrape time.
func (db *PostgresDB) RegisterMetrics(reg prometheus.Registerer) error {
	stat := func(read func(*pgxpool.Stat) float64) func() float64 {
		return func() float64 { return read(db.Pool.Stat()) }
	}
	return registerAll(reg,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "campussafe_pg_pool_acquired_conns",
			Help: "Postgres connections currently checked out",
		}, stat(func(s *pgxpool.Stat) float64 { return float64(s.AcquiredConns()) })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "campussafe_pg_pool_idle_conns",
			Help: "Postgres connections idle in the pool",
		}, stat(func(s *pgxpool.Stat) float64 { return float64(s.IdleConns()) })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "campussafe_pg_pool_max_conns",
			Help: "Configured Postgres pool size",
		}, stat(func(s *pgxpool.Stat) float64 { return float64(s.MaxConns()) })),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "campussafe_pg_pool_empty_acquire_total",
			Help: "Acquires that had to wait because the pool was empty",
		}, stat(func(s *pgxpool.Stat) float64 { return float64(s.EmptyAcquireCount()) })),
	)
}

// RegisterMetrics exposes go-redis pool statistics, read at scrape time.
func (r *RedisDB) RegisterMetrics(reg prometheus.Registerer) error {
	stat := func(read func(*redis.PoolStats) float64) func() float64 {
		return func() float64 { return read(r.Client.PoolStats()) }
	}
	return registerAll(reg,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "campussafe_redis_pool_total_conns",
			Help: "Redis connections open",
		}, stat(func(s *redis.PoolStats) float64 { return float64(s.TotalConns) })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "campussafe_redis_pool_idle_conns",
			Help: "Redis connections idle in the pool",
		}, stat(func(s *redis.PoolStats) float64 { return float64(s.IdleConns) })),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "campussafe_redis_pool_timeouts_total",
			Help: "Times a caller gave up waiting for a Redis connection",
		}, stat(func(s *redis.PoolStats) float64 { return float64(s.Timeouts) })),
	)
}

func registerAll(reg prometheus.Registerer, collectors ...prometheus.Collector) error {
	var errs []error
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
