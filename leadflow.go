// Package leadflow provides a top-level convenience entry point for running
// the qualification engine in-process with minimal boilerplate.
//
// Usage:
//
//	import "github.com/leadflowhq/leadflow"
//
//	lf, err := leadflow.New()
//	lf, err := leadflow.New(leadflow.WithMessenger(myMessenger))
//
// The instance runs on an in-memory SQLite store and the in-memory
// collaborator fakes unless options supply real ones. It is meant for
// embedding and local experimentation; the production entry point is
// cmd/leadflow, which wires Redis, Postgres, and the HTTP surface.
package leadflow

import (
	"go.uber.org/zap"

	"github.com/leadflowhq/leadflow/config"
	"github.com/leadflowhq/leadflow/engine"
	"github.com/leadflowhq/leadflow/engine/compliance"
	"github.com/leadflowhq/leadflow/engine/convcache"
	"github.com/leadflowhq/leadflow/engine/dedup"
	"github.com/leadflowhq/leadflow/engine/handoff"
	"github.com/leadflowhq/leadflow/engine/normalize"
	"github.com/leadflowhq/leadflow/engine/qualify"
	"github.com/leadflowhq/leadflow/engine/ratelimit"
	"github.com/leadflowhq/leadflow/engine/storage"
	"github.com/leadflowhq/leadflow/internal/database"
	"github.com/leadflowhq/leadflow/internal/metrics"
	"github.com/leadflowhq/leadflow/internal/taskq"
	"github.com/leadflowhq/leadflow/providers"
)

// Instance is an in-process engine with the resources it owns.
type Instance struct {
	*engine.Engine

	db    *database.Manager
	queue *taskq.Queue
}

// Close drains the side-effect queue and releases the store.
func (i *Instance) Close() error {
	i.queue.Close()
	return i.db.Close()
}

type options struct {
	cfg       config.EngineConfig
	logger    *zap.Logger
	namespace string
	crm       providers.CRM
	messenger providers.Messenger
	calendar  providers.Calendar
}

// Option configures the instance created by [New].
type Option func(*options)

// WithConfig replaces the default engine configuration.
func WithConfig(cfg config.EngineConfig) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithLogger sets a custom zap logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetricsNamespace sets the Prometheus namespace. Two instances in one
// process need distinct namespaces.
func WithMetricsNamespace(ns string) Option {
	return func(o *options) { o.namespace = ns }
}

// WithCRM sets the CRM collaborator.
func WithCRM(crm providers.CRM) Option {
	return func(o *options) { o.crm = crm }
}

// WithMessenger sets the outbound messenger.
func WithMessenger(m providers.Messenger) Option {
	return func(o *options) { o.messenger = m }
}

// WithCalendar sets the showing calendar.
func WithCalendar(c providers.Calendar) Option {
	return func(o *options) { o.calendar = c }
}

// New creates an in-process [Instance] backed by in-memory storage.
func New(opts ...Option) (*Instance, error) {
	o := options{
		cfg:       config.DefaultEngineConfig(),
		logger:    zap.NewNop(),
		namespace: "leadflow",
		crm:       providers.NewMemoryCRM(),
		messenger: providers.NewMemoryMessenger(),
		calendar:  providers.NewMemoryCalendar(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := database.Open(config.DatabaseConfig{Driver: "sqlite", Name: ":memory:"}, o.logger)
	if err != nil {
		return nil, err
	}
	store := storage.NewStore(db, o.logger)
	if err := store.AutoMigrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	collector := metrics.NewCollector(o.namespace)
	queue := taskq.New(o.cfg.Worker, o.logger)
	queue.OnDepth(collector.SetQueueDepth)

	eng := engine.New(o.cfg, engine.Deps{
		Guard:      dedup.NewMemoryGuard(o.cfg.Dedup),
		Normalizer: normalize.New("", o.logger),
		Filter:     compliance.New(o.cfg.Compliance, o.logger),
		Cache:      convcache.New(o.cfg.Cache, nil, store, nil, collector, o.logger),
		Store:      store,
		Machine:    qualify.NewMachine(o.cfg.Qualification, o.logger),
		Coord:      handoff.New(o.cfg.Handoff, nil, store, o.logger),
		Limiter:    ratelimit.New(o.cfg.RateLimit, nil, o.logger),
		Queue:      queue,
		CRM:        o.crm,
		Messenger:  o.messenger,
		Calendar:   o.calendar,
		Metrics:    collector,
	}, o.logger)

	return &Instance{Engine: eng, db: db, queue: queue}, nil
}
