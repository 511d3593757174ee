package presentation

import (
	"fmt"
	"sync"

	"github.com/automoto/doomerang-authority/bus"
	"github.com/automoto/doomerang-authority/logging"
	"github.com/google/uuid"
	"github.com/quasilyte/gdata"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/yohamta/donburi"
	"go.uber.org/zap"
)

// Store persists named blobs. *gdata.Manager satisfies it.
type Store interface {
	SaveItem(key string, data []byte) error
	LoadItem(key string) ([]byte, error)
}

// OpenStore opens the per-user data directory for appName.
func OpenStore(appName string) (Store, error) {
	m, err := gdata.Open(gdata.Config{
		AppName: appName,
	})
	if err != nil {
		return nil, fmt.Errorf("open store %q: %w", appName, err)
	}
	return m, nil
}

const (
	lastSessionKey = "telemetry_last"
	localKeyBit    = uint64(1) << 63
)

// Counter is a per-entity tally. Entities are keyed by network id when they
// have one so that the record survives a restart of the world.
type Counter map[uint64]int

// SessionStats is the persisted record of one session.
type SessionStats struct {
	Session     string  `msgpack:"session"`
	Hits        int     `msgpack:"hits"`
	DamageDealt Counter `msgpack:"damage_dealt"`
	DamageTaken Counter `msgpack:"damage_taken"`
	Kills       Counter `msgpack:"kills"`
	Deaths      Counter `msgpack:"deaths"`
	SelfDamage  int     `msgpack:"self_damage"`
	EnvDeaths   int     `msgpack:"env_deaths"`
}

func newSessionStats(session string) *SessionStats {
	return &SessionStats{
		Session:     session,
		DamageDealt: Counter{},
		DamageTaken: Counter{},
		Kills:       Counter{},
		Deaths:      Counter{},
	}
}

// Telemetry counts damage and deaths for the running session and writes the
// totals to a Store on Flush.
type Telemetry struct {
	mu      sync.Mutex
	stats   *SessionStats
	once    *bus.Once
	store   Store
	logger  *zap.Logger
	session uuid.UUID
}

// NewTelemetry creates a recorder. store may be nil, in which case Flush is
// a no-op.
func NewTelemetry(store Store, logger *zap.Logger) *Telemetry {
	logger = logging.OrNop(logger)
	session := uuid.New()
	return &Telemetry{
		stats:   newSessionStats(session.String()),
		once:    bus.NewOnce(0),
		store:   store,
		logger:  logger.Named("telemetry"),
		session: session,
	}
}

// Register subscribes the recorder to b.
func (t *Telemetry) Register(b *bus.Bus) {
	bus.On(b, "telemetry", t.onDamage)
	bus.On(b, "telemetry", t.onDeath)
}

func (t *Telemetry) Session() uuid.UUID {
	return t.session
}

// Snapshot returns a deep copy of the current counters.
func (t *Telemetry) Snapshot() SessionStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := *t.stats
	out.DamageDealt = copyCounter(t.stats.DamageDealt)
	out.DamageTaken = copyCounter(t.stats.DamageTaken)
	out.Kills = copyCounter(t.stats.Kills)
	out.Deaths = copyCounter(t.stats.Deaths)
	return out
}

func (t *Telemetry) onDamage(f bus.DamageFact) error {
	if !t.once.Trigger(f.ID) {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stats.Hits++
	t.stats.DamageTaken[key(f.TargetNetID, f.Target)] += f.Amount
	if f.SelfInflicted {
		t.stats.SelfDamage += f.Amount
		return nil
	}
	if f.Attacker != donburi.Null {
		t.stats.DamageDealt[key(f.AttackerNetID, f.Attacker)] += f.Amount
	}
	return nil
}

func (t *Telemetry) onDeath(f bus.DeathFact) error {
	if !t.once.Trigger(f.ID) {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stats.Deaths[key(f.VictimNetID, f.Victim)]++
	switch {
	case f.Killer == donburi.Null:
		t.stats.EnvDeaths++
	case f.Killer != f.Victim:
		t.stats.Kills[key(f.KillerNetID, f.Killer)]++
	}
	return nil
}

// Flush writes the session record and points the "last session" key at it.
func (t *Telemetry) Flush() error {
	if t.store == nil {
		return nil
	}
	stats := t.Snapshot()
	data, err := msgpack.Marshal(&stats)
	if err != nil {
		return fmt.Errorf("encode telemetry: %w", err)
	}
	if err := t.store.SaveItem(sessionKey(stats.Session), data); err != nil {
		return fmt.Errorf("save telemetry: %w", err)
	}
	if err := t.store.SaveItem(lastSessionKey, []byte(stats.Session)); err != nil {
		return fmt.Errorf("save telemetry index: %w", err)
	}
	t.logger.Info("telemetry flushed",
		zap.String("session", stats.Session),
		zap.Int("hits", stats.Hits),
	)
	return nil
}

// LoadLastSession reads the record written by the most recent Flush.
// It returns nil, nil when nothing was saved yet.
func LoadLastSession(store Store) (*SessionStats, error) {
	id, err := store.LoadItem(lastSessionKey)
	if err != nil {
		return nil, fmt.Errorf("load telemetry index: %w", err)
	}
	if len(id) == 0 {
		return nil, nil
	}
	data, err := store.LoadItem(sessionKey(string(id)))
	if err != nil {
		return nil, fmt.Errorf("load telemetry %s: %w", id, err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var stats SessionStats
	if err := msgpack.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("decode telemetry %s: %w", id, err)
	}
	return &stats, nil
}

func sessionKey(session string) string {
	return "telemetry_" + session
}

// key prefers the network id. Local-only entities fall back to their
// entity id, offset so the two ranges never meet.
func key(netID uint, e donburi.Entity) uint64 {
	if netID != 0 {
		return uint64(netID)
	}
	return localKeyBit | uint64(e)
}

func copyCounter(c Counter) Counter {
	out := make(Counter, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}
