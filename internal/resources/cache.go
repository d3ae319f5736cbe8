// Package resources implements the ConfigurationCache from §4.1: fetching,
// memoizing and concurrency-safe refreshing of the engine-provided
// container/queue topology.
package resources

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gopkg.in/tomb.v2"

	"github.com/flowline-data/ingest-go/ingesterr"
	"github.com/flowline-data/ingest-go/internal/engineclient"
)

const defaultRefreshInterval = 1 * time.Hour

// configurationResponse mirrors the §6 wire schema, plus the Queues
// supplement from §12.
type configurationResponse struct {
	ContainerSettings struct {
		Containers            []pathEntry `json:"containers"`
		LakeFolders           []pathEntry `json:"lakeFolders"`
		RefreshInterval       string      `json:"refreshInterval"`
		PreferredUploadMethod string      `json:"preferredUploadMethod"`
	} `json:"containerSettings"`
	Queues []pathEntry `json:"queues"`
}

type pathEntry struct {
	Path string `json:"path"`
}

// Cache fetches and memoizes the topology returned by the engine's
// configuration endpoint (§6: GET {dm}/v1/rest/ingestion/configuration).
//
// Concurrency is satisfied with a single-flight guard (golang.org/x/sync)
// over an atomically-swapped snapshot pointer: under N concurrent callers
// at expiry exactly one upstream fetch is in flight; the rest await its
// result and observe the refreshed snapshot, satisfying §4.1/§5 and the
// testable property in §8 ("50 concurrent getConfiguration() calls ... all
// 50 observe the same topology instance").
type Cache struct {
	client *engineclient.Client
	log    *zap.Logger

	configuredDefault time.Duration

	snapshot atomic.Pointer[snapshot]
	group    singleflight.Group

	// prefetch, when started via StartBackgroundRefresh, supervises a
	// periodic proactive refresh loop so callers on the hot path rarely
	// pay for a synchronous fetch.
	prefetch *tomb.Tomb
	mu       sync.Mutex
}

type snapshot struct {
	topology  *Topology
	fetchedAt time.Time
	interval  time.Duration
}

// New builds a Cache. configuredDefault is the refresh interval used when
// the server hint is absent or unparseable; pass 0 to use
// defaultRefreshInterval.
func New(client *engineclient.Client, configuredDefault time.Duration, log *zap.Logger) *Cache {
	if configuredDefault <= 0 {
		configuredDefault = defaultRefreshInterval
	}
	return &Cache{
		client:            client,
		log:               log,
		configuredDefault: configuredDefault,
	}
}

// GetConfiguration returns the memoized Topology, refreshing it first if
// the previous snapshot has expired or none exists yet.
func (c *Cache) GetConfiguration(ctx context.Context) (*Topology, error) {
	cur := c.snapshot.Load()
	if cur != nil && time.Since(cur.fetchedAt) < cur.interval {
		return cur.topology, nil
	}

	v, err, _ := c.group.Do("refresh", func() (interface{}, error) {
		return c.refresh(ctx, cur)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Topology), nil
}

// refresh performs the upstream fetch. On failure, it falls back to the
// previously cached value (stale) when one exists, per §4.1; with no prior
// success, it surfaces a permanent CONFIGURATION_UNAVAILABLE error.
func (c *Cache) refresh(ctx context.Context, prior *snapshot) (*Topology, error) {
	// Re-check under the single-flight lock: another goroutine may have
	// already refreshed while we were waiting to enter Do.
	if latest := c.snapshot.Load(); latest != nil && latest != prior && time.Since(latest.fetchedAt) < latest.interval {
		return latest.topology, nil
	}

	topo, interval, err := c.fetch(ctx)
	if err != nil {
		if prior != nil {
			c.log.Warn("configuration refresh failed, serving stale snapshot",
				zap.Error(err), zap.Time("fetchedAt", prior.fetchedAt))
			return prior.topology, nil
		}
		return nil, ingesterr.Wrap(ingesterr.ConfigurationUnavailable, true,
			"no prior configuration snapshot and refresh failed", err)
	}

	c.snapshot.Store(&snapshot{topology: topo, fetchedAt: time.Now(), interval: interval})
	c.log.Info("configuration refreshed", zap.Int("containers", len(topo.Containers)),
		zap.Int("lakeFolders", len(topo.LakeFolders)), zap.Duration("nextRefresh", interval))
	return topo, nil
}

func (c *Cache) fetch(ctx context.Context) (*Topology, time.Duration, error) {
	req, err := c.client.NewRequest(ctx)
	if err != nil {
		return nil, 0, ingesterr.Wrap(ingesterr.AuthorizationFailure, true, "authorizing configuration request", err)
	}

	var body configurationResponse
	resp, err := req.SetResult(&body).Get(c.client.DMURL() + "/v1/rest/ingestion/configuration")
	if err != nil {
		return nil, 0, ingesterr.Wrap(ingesterr.Network, false, "configuration GET failed", err)
	}
	if resp.StatusCode() >= 400 {
		return nil, 0, ingesterr.New(ingesterr.ConfigurationUnavailable,
			fmt.Sprintf("configuration endpoint returned status %d", resp.StatusCode()))
	}

	topo := &Topology{
		PreferredMethod: parsePreferredMethod(body.ContainerSettings.PreferredUploadMethod),
	}
	for _, p := range body.ContainerSettings.Containers {
		topo.Containers = append(topo.Containers, Container{URL: p.Path, UploadMethod: MethodStorage})
	}
	for _, p := range body.ContainerSettings.LakeFolders {
		topo.LakeFolders = append(topo.LakeFolders, Container{URL: p.Path, UploadMethod: MethodLake})
	}
	for _, p := range body.Queues {
		topo.Queues = append(topo.Queues, Container{URL: p.Path})
	}

	interval := ParseRefreshInterval(body.ContainerSettings.RefreshInterval, c.configuredDefault)
	if interval > c.configuredDefault {
		interval = c.configuredDefault
	}
	return topo, interval, nil
}

func parsePreferredMethod(hint string) UploadMethod {
	switch hint {
	case "Storage":
		return MethodStorage
	case "Lake":
		return MethodLake
	default:
		return ""
	}
}

// ParseRefreshInterval applies §4.1's rule: "the effective interval is
// min(configuredDefault, serverHintedInterval)"; an unparseable or empty
// hint falls back to configuredDefault.
func ParseRefreshInterval(hint string, configuredDefault time.Duration) time.Duration {
	if hint == "" {
		return configuredDefault
	}
	d, err := ParseCompactDuration(hint)
	if err != nil {
		return configuredDefault
	}
	if d < configuredDefault {
		return d
	}
	return configuredDefault
}

// StartBackgroundRefresh launches a supervised goroutine (via gopkg.in/
// tomb.v2; this is the only tomb-supervised loop in the module, the
// tracker's PollForCompletion being a plain synchronous loop) that proactively
// refreshes the snapshot shortly before it would expire, so that hot-path
// callers rarely block on a synchronous fetch. It is optional: GetConfiguration
// works correctly without it, just with occasional synchronous refreshes.
func (c *Cache) StartBackgroundRefresh(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.prefetch != nil {
		return
	}
	t, tctx := tomb.WithContext(ctx)
	c.prefetch = t
	t.Go(func() error {
		for {
			wait := c.configuredDefault
			if cur := c.snapshot.Load(); cur != nil {
				remaining := cur.interval - time.Since(cur.fetchedAt)
				if remaining > 0 {
					wait = remaining
				} else {
					wait = time.Second
				}
			}
			select {
			case <-tctx.Done():
				return tctx.Err()
			case <-time.After(wait):
				if _, err := c.GetConfiguration(tctx); err != nil {
					c.log.Warn("background configuration prefetch failed", zap.Error(err))
				}
			}
		}
	})
}

// StopBackgroundRefresh stops the prefetch loop started by
// StartBackgroundRefresh, if any, and waits for it to exit.
func (c *Cache) StopBackgroundRefresh() error {
	c.mu.Lock()
	t := c.prefetch
	c.prefetch = nil
	c.mu.Unlock()
	if t == nil {
		return nil
	}
	t.Kill(nil)
	return t.Wait()
}
