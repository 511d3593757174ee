package network

import (
	"testing"

	"github.com/automoto/doomerang-authority/bus"
	"github.com/automoto/doomerang-authority/shared/netcomponents"
	"github.com/automoto/doomerang-authority/shared/netconfig"
	"github.com/leap-fish/necs/esync"
	"github.com/yohamta/donburi"
)

func TestReplicaMirrorsAndPrunes(t *testing.T) {
	r := NewReplica(nil)

	r.apply(1, []any{
		netcomponents.NetHealthData{Current: 70, Max: 100},
		netcomponents.NetLifeStateData{State: netconfig.Alive},
	})
	r.apply(2, []any{
		netcomponents.NetLifeStateData{State: netconfig.Dead, RespawnRemaining: 4.5},
		netcomponents.NetPositionData{X: 3, Y: 4},
	})
	r.prune()

	if hp, ok := r.Health(1); !ok || hp.Current != 70 {
		t.Errorf("Health(1) = %+v, %v", hp, ok)
	}
	if ls, ok := r.LifeState(2); !ok || ls.State != netconfig.Dead || ls.RespawnRemaining != 4.5 {
		t.Errorf("LifeState(2) = %+v, %v", ls, ok)
	}
	if pos, ok := r.Position(2); !ok || pos.X != 3 || pos.Y != 4 {
		t.Errorf("Position(2) = %+v, %v", pos, ok)
	}
	if _, ok := r.Health(2); ok {
		t.Error("Health(2) present but never replicated")
	}
	if ids := r.IDs(); len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Errorf("IDs = %v", ids)
	}

	// Next snapshot only carries entity 2.
	clear(r.present)
	r.apply(2, []any{netcomponents.NetLifeStateData{State: netconfig.Alive}})
	r.prune()

	if r.Entity(1) != donburi.Null {
		t.Error("entity 1 survived a snapshot without it")
	}
	if ls, _ := r.LifeState(2); ls.State != netconfig.Alive {
		t.Errorf("LifeState(2) = %v after update", ls.State)
	}
}

func TestReplicaResolvesFilterEntities(t *testing.T) {
	r := NewReplica(nil)
	r.apply(esync.NetworkId(5), []any{netcomponents.NetHealthData{Current: 10, Max: 10}})

	b := bus.New(nil)
	filter := NewBroadcastFilter(b, r, nil)
	filter.Damage(damageMsg(5, netconfig.EnvironmentID, 4, 6))

	fact := b.Drain()[0].(bus.DamageFact)
	if fact.Target != r.Entity(5) || fact.Target == donburi.Null {
		t.Errorf("Target = %v, want replica entity", fact.Target)
	}
	if fact.Attacker != donburi.Null {
		t.Errorf("environment attacker resolved to %v", fact.Attacker)
	}
}

func TestReplicaRejectsUnknownLifeState(t *testing.T) {
	r := NewReplica(nil)
	r.apply(1, []any{netcomponents.NetLifeStateData{State: netconfig.Dead, RespawnRemaining: 2}})
	r.apply(1, []any{
		netcomponents.NetLifeStateData{State: netconfig.LifeState(7)},
		netcomponents.NetHealthData{Current: 0, Max: 100},
	})

	if ls, ok := r.LifeState(1); !ok || ls.State != netconfig.Dead || ls.RespawnRemaining != 2 {
		t.Errorf("LifeState(1) = %+v, %v; want previous dead state kept", ls, ok)
	}
	if hp, ok := r.Health(1); !ok || hp.Max != 100 {
		t.Errorf("Health(1) = %+v, %v; valid components in the same update should apply", hp, ok)
	}
}
