package network

import (
	"slices"

	"github.com/automoto/doomerang-authority/logging"
	"github.com/automoto/doomerang-authority/shared/netcomponents"
	"github.com/automoto/doomerang-authority/shared/netconfig"
	"github.com/leap-fish/necs/esync"
	"github.com/yohamta/donburi"
	"go.uber.org/zap"
)

// Replica is the client's read-only copy of the replicated components. It is
// rebuilt from server snapshots and never runs combat logic of its own.
type Replica struct {
	world   donburi.World
	present map[esync.NetworkId]bool
	logger  *zap.Logger
}

func NewReplica(logger *zap.Logger) *Replica {
	logger = logging.OrNop(logger)
	return &Replica{
		world:   donburi.NewWorld(),
		present: make(map[esync.NetworkId]bool),
		logger:  logger.Named("replica"),
	}
}

// Apply replaces the replica's state with snapshot. Entities missing from
// the snapshot are removed.
func (r *Replica) Apply(snapshot esync.WorldSnapshot) {
	clear(r.present)
	for _, ent := range snapshot {
		var data []any
		for _, raw := range ent.State {
			instance, err := esync.Mapper.Deserialize(raw)
			if err != nil {
				r.logger.Debug("skipping undecodable component", zap.Uint("network_id", uint(ent.Id)), zap.Error(err))
				continue
			}
			data = append(data, instance)
		}
		r.apply(ent.Id, data)
	}
	r.prune()
}

func (r *Replica) apply(id esync.NetworkId, data []any) {
	r.present[id] = true

	entity := esync.FindByNetworkId(r.world, id)
	if !r.world.Valid(entity) {
		entity = r.world.Create(esync.NetworkIdComponent)
		esync.NetworkIdComponent.SetValue(r.world.Entry(entity), id)
	}
	entry := r.world.Entry(entity)
	for _, d := range data {
		if !applyComponent(entry, d) {
			r.logger.Warn("rejecting invalid replicated component",
				zap.Uint("network_id", uint(id)),
				zap.Any("data", d),
			)
		}
	}
}

func (r *Replica) prune() {
	var gone []donburi.Entity
	esync.NetworkEntityQuery.Each(r.world, func(entry *donburi.Entry) {
		if id := esync.GetNetworkId(entry); id != nil && !r.present[*id] {
			gone = append(gone, entry.Entity())
		}
	})
	for _, e := range gone {
		r.world.Remove(e)
	}
}

// applyComponent copies data onto entry. It returns false for values the
// server could never have sent; the previous value is kept.
func applyComponent(entry *donburi.Entry, data any) bool {
	switch v := data.(type) {
	case netcomponents.NetHealthData:
		setComponent(entry, netcomponents.NetHealth, v)
	case netcomponents.NetLifeStateData:
		if !v.State.Valid() {
			return false
		}
		setComponent(entry, netcomponents.NetLifeState, v)
	case netcomponents.NetPositionData:
		setComponent(entry, netcomponents.NetPosition, v)
	}
	return true
}

func setComponent[T any](entry *donburi.Entry, ctype *donburi.ComponentType[T], v T) {
	if !entry.HasComponent(ctype) {
		entry.AddComponent(ctype)
	}
	ctype.SetValue(entry, v)
}

// Entity returns the local entity mirroring id, or donburi.Null.
func (r *Replica) Entity(id uint) donburi.Entity {
	if id == netconfig.EnvironmentID {
		return donburi.Null
	}
	e := esync.FindByNetworkId(r.world, esync.NetworkId(id))
	if !r.world.Valid(e) {
		return donburi.Null
	}
	return e
}

// Health returns the last replicated health of id.
func (r *Replica) Health(id uint) (netcomponents.NetHealthData, bool) {
	return get(r, id, netcomponents.NetHealth)
}

// LifeState returns the last replicated life state of id.
func (r *Replica) LifeState(id uint) (netcomponents.NetLifeStateData, bool) {
	return get(r, id, netcomponents.NetLifeState)
}

// Position returns the last replicated position of id.
func (r *Replica) Position(id uint) (netcomponents.NetPositionData, bool) {
	return get(r, id, netcomponents.NetPosition)
}

// IDs returns the network ids currently mirrored, in ascending order.
func (r *Replica) IDs() []uint {
	var ids []uint
	esync.NetworkEntityQuery.Each(r.world, func(entry *donburi.Entry) {
		if id := esync.GetNetworkId(entry); id != nil {
			ids = append(ids, uint(*id))
		}
	})
	slices.Sort(ids)
	return ids
}

func get[T any](r *Replica, id uint, ctype *donburi.ComponentType[T]) (T, bool) {
	var zero T
	e := r.Entity(id)
	if e == donburi.Null {
		return zero, false
	}
	entry := r.world.Entry(e)
	if !entry.HasComponent(ctype) {
		return zero, false
	}
	return *ctype.Get(entry), true
}
