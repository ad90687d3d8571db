package router

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gridfed/hginventory/internal/cache"
	"github.com/gridfed/hginventory/internal/diagnostics"
	"github.com/gridfed/hginventory/internal/logging"
	"github.com/gridfed/hginventory/internal/metrics"
	"github.com/gridfed/hginventory/pkg/errors"
	"github.com/gridfed/hginventory/pkg/types"
)

// Cache names used in metrics
const (
	cacheURL       = "url"
	cacheConnector = "connector"
	cacheResult    = "result"
)

// DefaultMultiFolderConcurrency bounds the remote fan-out of
// GetMultipleFoldersContent
const DefaultMultiFolderConcurrency = 8

// Options tunes routing behaviour
type Options struct {
	ConnectorTTL time.Duration

	// SerializeLocalReads runs local GetInventorySkeleton and
	// GetAssetPermissions calls one at a time
	SerializeLocalReads bool

	MultiFolderConcurrency int

	// TrackRemoteCalls wraps every remote call in a diagnostics tracker
	TrackRemoteCalls bool
}

// DefaultOptions returns the default routing options
func DefaultOptions() Options {
	return Options{
		ConnectorTTL:           cache.DefaultConnectorTTL,
		SerializeLocalReads:    true,
		MultiFolderConcurrency: DefaultMultiFolderConcurrency,
		TrackRemoteCalls:       true,
	}
}

// Dependencies are the collaborators a Router is built from
type Dependencies struct {
	// Local serves users that have no remote home inventory. Required.
	Local types.InventoryService

	// Identity answers local-user and persisted service URL questions.
	// nil treats every user as local.
	Identity types.IdentityResolver

	// Sessions exposes hosted presences. nil skips presence lookups and
	// makes every session close evict.
	Sessions types.SessionHost

	// ConnectorFactory builds connectors for remote endpoints. Required
	// whenever Identity can resolve a remote endpoint.
	ConnectorFactory types.ConnectorFactory

	Options Options

	Logger  *zap.Logger
	Metrics *metrics.Collector
	Monitor *diagnostics.Monitor

	// Now overrides the clock; nil means time.Now
	Now func() time.Time
}

// Stats shows the state of the router caches
type Stats struct {
	URLs       types.CacheStats `json:"urls"`
	Connectors types.CacheStats `json:"connectors"`
	Results    types.CacheStats `json:"results"`
}

// Router routes inventory operations to the local service or to the remote
// home inventory of a foreign user
type Router struct {
	local    types.InventoryService
	sessions types.SessionHost

	urls       *cache.URLCache
	connectors *cache.ConnectorCache
	results    *cache.ResultCache

	// localMu serializes the local reads named in Options
	localMu sync.Mutex

	options Options
	logger  *zap.Logger
	metrics *metrics.Collector
	monitor *diagnostics.Monitor
	now     func() time.Time
}

// New creates a router. It fails with MISSING_LOCAL_SERVICE when no local
// service is configured.
func New(deps Dependencies) (*Router, error) {
	if deps.Local == nil {
		return nil, errors.NewError(errors.ErrCodeMissingLocalService,
			"no local inventory service configured").
			WithComponent("router")
	}
	if deps.Options.ConnectorTTL <= 0 {
		deps.Options.ConnectorTTL = cache.DefaultConnectorTTL
	}
	if deps.Options.MultiFolderConcurrency <= 0 {
		deps.Options.MultiFolderConcurrency = DefaultMultiFolderConcurrency
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	logger := logging.OrNop(deps.Logger).With(zap.String("component", "router"))

	factory := deps.ConnectorFactory
	if factory == nil {
		factory = func(endpoint types.Endpoint) (types.InventoryService, error) {
			return nil, errors.NewError(errors.ErrCodeConnectorBuild, "no connector factory configured").
				WithContext("endpoint", endpoint.String())
		}
	}
	connectors, err := cache.NewConnectorCache(cache.ConnectorCacheConfig{
		TTL:     deps.Options.ConnectorTTL,
		Factory: factory,
		Logger:  logger,
		Now:     deps.Now,
	})
	if err != nil {
		return nil, err
	}

	return &Router{
		local:      deps.Local,
		sessions:   deps.Sessions,
		urls:       cache.NewURLCache(deps.Identity, deps.Sessions),
		connectors: connectors,
		results:    cache.NewResultCache(),
		options:    deps.Options,
		logger:     logger,
		metrics:    deps.Metrics,
		monitor:    deps.Monitor,
		now:        deps.Now,
	}, nil
}

// HandleClientClosed evicts user's cached endpoint and results unless the
// user still has an active root presence in one of the hosted sessions
func (r *Router) HandleClientClosed(_ context.Context, user types.UserID) {
	if r.sessions != nil {
		for _, s := range r.sessions.Sessions() {
			p, ok := s.Presence(user)
			if ok && !p.ChildAgent && p.Active {
				r.logger.Debug("User still present, keeping cached inventory state",
					zap.String("user", user.String()),
					zap.String("session", s.Name()))
				return
			}
		}
	}

	r.urls.Remove(user)
	r.results.RemoveAll(user)
	r.logger.Debug("Evicted cached inventory state", zap.String("user", user.String()))
}

// Stats returns cache statistics
func (r *Router) Stats() Stats {
	return Stats{
		URLs:       r.urls.Stats(),
		Connectors: r.connectors.Stats(),
		Results:    r.results.Stats(),
	}
}

// PurgeExpired evicts connectors past their lifetime and refreshes the
// cached connector gauge. Lookups expire entries lazily; this bounds how long
// unused connectors stay resident.
func (r *Router) PurgeExpired() int {
	removed := r.connectors.Purge()
	r.metrics.SetCachedConnectors(r.connectors.Len())
	if removed > 0 {
		r.logger.Debug("Purged expired connectors", zap.Int("removed", removed))
	}
	return removed
}

// Run calls PurgeExpired every interval until ctx is done
func (r *Router) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = r.options.ConnectorTTL
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.PurgeExpired()
		}
	}
}

// target is the service chosen for one call
type target struct {
	svc      types.InventoryService
	endpoint types.Endpoint
}

func (t target) remote() bool {
	return !t.endpoint.IsZero()
}

func (t target) route() string {
	if t.remote() {
		return metrics.RouteRemote
	}
	return metrics.RouteLocal
}

// lookup resolves the endpoint of user without constructing a connector
func (r *Router) lookup(ctx context.Context, user types.UserID) types.Endpoint {
	endpoint, hit := r.urls.Resolve(ctx, user)
	r.metrics.RecordCacheRequest(cacheURL, hit)
	return endpoint
}

// connect returns the service for endpoint; the zero endpoint is local
func (r *Router) connect(operation string, endpoint types.Endpoint) (target, error) {
	if endpoint.IsZero() {
		return target{svc: r.local}, nil
	}

	svc, created, err := r.connectors.GetOrCreate(endpoint)
	if err != nil {
		r.logger.Warn("Connector construction failed",
			zap.String("operation", operation),
			zap.String("endpoint", endpoint.String()),
			zap.Error(err))
		return target{endpoint: endpoint}, err
	}
	r.metrics.RecordCacheRequest(cacheConnector, !created)
	if created {
		r.metrics.RecordConnectorConstruction()
		r.metrics.SetCachedConnectors(r.connectors.Len())
	}
	return target{svc: svc, endpoint: endpoint}, nil
}

// cacheHooks reads and fills the result cache around a remote read
type cacheHooks[T any] struct {
	get func() (T, bool)
	put func(T)
}

// callOptions adjusts how forward invokes a verb
type callOptions struct {
	serialize bool
}

// forward routes one verb on behalf of user and records its outcome
func forward[T any](ctx context.Context, r *Router, operation string, user types.UserID,
	opts callOptions, hooks *cacheHooks[T], call func(types.InventoryService) types.Result[T]) types.Result[T] {
	start := r.now()
	endpoint := r.lookup(ctx, user)

	if !endpoint.IsZero() && hooks != nil {
		if v, ok := hooks.get(); ok {
			r.metrics.RecordCacheRequest(cacheResult, true)
			r.logger.Debug("Result cache hit",
				zap.String("operation", operation),
				zap.String("user", user.String()))
			r.metrics.RecordRoute(operation, metrics.RouteCache, r.now().Sub(start))
			return types.OKResult(v)
		}
		r.metrics.RecordCacheRequest(cacheResult, false)
	}

	t, err := r.connect(operation, endpoint)
	if err != nil {
		r.record(operation, t, start, types.StatusFailed, err)
		return types.FailedResult[T](err)
	}

	res := invoke(r, t, operation, user, opts, call)
	if t.remote() && hooks != nil && res.OK() {
		hooks.put(res.Value)
	}

	r.record(operation, t, start, res.Status, res.Err)
	return res
}

// record reports the route, duration and failure of one verb
func (r *Router) record(operation string, t target, start time.Time, status types.Status, err error) {
	r.metrics.RecordRoute(operation, t.route(), r.now().Sub(start))
	if status == types.StatusFailed {
		r.metrics.RecordError(operation, err)
	}
}

// invoke calls the chosen service, serializing local reads and tracking
// remote calls as configured
func invoke[T any](r *Router, t target, operation string, user types.UserID,
	opts callOptions, call func(types.InventoryService) types.Result[T]) types.Result[T] {
	if !t.remote() {
		if opts.serialize && r.options.SerializeLocalReads {
			r.localMu.Lock()
			defer r.localMu.Unlock()
		}
		return call(t.svc)
	}

	var id string
	if r.options.TrackRemoteCalls {
		id = r.monitor.TrackStart(operation, user.String())
	}
	res := call(t.svc)
	if id != "" {
		r.monitor.TrackEnd(id, res.Status != types.StatusFailed)
	}
	return res
}

var _ types.InventoryService = (*Router)(nil)
