package systems

import (
	"errors"
	"math"
	"testing"

	"github.com/automoto/doomerang-authority/archetypes"
	"github.com/automoto/doomerang-authority/bus"
	"github.com/automoto/doomerang-authority/components"
	"github.com/automoto/doomerang-authority/config"
	"github.com/automoto/doomerang-authority/shared/netcomponents"
	"github.com/automoto/doomerang-authority/shared/netconfig"
	"github.com/automoto/doomerang-authority/tags"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/yohamta/donburi"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"go.uber.org/zap/zapcore"
)

var spawnPoint = FixedSpawn{64, 32, 0}

func testConfigs() (config.CombatConfig, config.RespawnConfig) {
	return config.CombatConfig{DefaultHealth: 100, MaxDamagePerHit: 500, Workers: 4},
		config.RespawnConfig{Duration: 5.0, MaxDelta: 1.0}
}

func newPipeline(t *testing.T, role Role) (donburi.World, *Pipeline) {
	t.Helper()
	combat, respawn := testConfigs()
	return donburi.NewWorld(), NewPipeline(combat, respawn, role, bus.New(nil), spawnPoint, nil)
}

func spawnAt(w donburi.World, current, max int) donburi.Entity {
	e := archetypes.Combatant.Spawn(w, max, mgl64.Vec3{1, 2, 3})
	components.Health.Get(e).Current = current
	return e.Entity()
}

func hit(target, attacker donburi.Entity, amount float64) components.DamageCommand {
	return components.DamageCommand{
		Target:    target,
		Attacker:  attacker,
		Amount:    amount,
		Direction: mgl64.Vec3{1, 0, 0},
	}
}

func health(w donburi.World, e donburi.Entity) int {
	return components.Health.Get(w.Entry(e)).Current
}

func lifeState(w donburi.World, e donburi.Entity) netconfig.LifeState {
	return components.Life.Get(w.Entry(e)).State
}

func splitFacts(facts []bus.Fact) (dmg []bus.DamageFact, deaths []bus.DeathFact) {
	for _, f := range facts {
		switch v := f.(type) {
		case bus.DamageFact:
			dmg = append(dmg, v)
		case bus.DeathFact:
			deaths = append(deaths, v)
		}
	}
	return dmg, deaths
}

// checkLifeInvariant fails if any entity holds a respawn timer while alive
// or is dead without one.
func checkLifeInvariant(t *testing.T, w donburi.World) {
	t.Helper()
	tags.Damageable.Each(w, func(e *donburi.Entry) {
		dead := components.Life.Get(e).State == netconfig.Dead
		timer := e.HasComponent(components.RespawnTimer)
		if dead != timer {
			t.Fatalf("entity %v: dead=%v but has respawn timer=%v", e.Entity(), dead, timer)
		}
		if dead != e.HasComponent(tags.Dead) {
			t.Fatalf("entity %v: dead=%v but Dead tag=%v", e.Entity(), dead, e.HasComponent(tags.Dead))
		}
		hp := components.Health.Get(e)
		if hp.Current < 0 || hp.Current > hp.Max {
			t.Fatalf("entity %v: health %d outside [0,%d]", e.Entity(), hp.Current, hp.Max)
		}
	})
}

func TestDamageSubtractsAndClamps(t *testing.T) {
	tests := []struct {
		before int
		amount float64
		want   int
	}{
		{100, 1, 99},
		{100, 25, 75},
		{30, 30, 0},
		{30, 50, 0},
		{1, 500, 0},
		{80, 0.25, 79}, // fractional hits remove at least one point
		{80, 9.5, 70},
	}
	for _, tt := range tests {
		w, p := newPipeline(t, Authority)
		target := spawnAt(w, tt.before, 100)
		if err := p.Engine.Enqueue(w, hit(target, donburi.Null, tt.amount)); err != nil {
			t.Fatalf("Enqueue(%v): %v", tt.amount, err)
		}
		if _, err := p.Tick(w, 0.05); err != nil {
			t.Fatalf("Tick: %v", err)
		}
		if got := health(w, target); got != tt.want {
			t.Errorf("before=%d amount=%v: health=%d, want %d", tt.before, tt.amount, got, tt.want)
		}
		checkLifeInvariant(t, w)
	}
}

func TestInvalidAmountsAreRejected(t *testing.T) {
	tests := []struct {
		amount float64
		want   error
	}{
		{-5, ErrInvalidAmount},
		{0, ErrInvalidAmount},
		{math.NaN(), ErrInvalidAmount},
		{math.Inf(1), ErrInvalidAmount},
		{math.Inf(-1), ErrInvalidAmount},
		{500.5, ErrAmountTooLarge},
	}
	for _, tt := range tests {
		w, p := newPipeline(t, Authority)
		target := spawnAt(w, 60, 100)

		if err := p.Engine.Enqueue(w, hit(target, donburi.Null, tt.amount)); !errors.Is(err, tt.want) {
			t.Errorf("Enqueue(%v) error = %v, want %v", tt.amount, err, tt.want)
		}
		if _, err := p.Engine.Apply(w.Entry(target), hit(target, donburi.Null, tt.amount), 1); !errors.Is(err, tt.want) {
			t.Errorf("Apply(%v) error = %v, want %v", tt.amount, err, tt.want)
		}
		if _, err := p.Tick(w, 0.05); err != nil {
			t.Fatalf("Tick: %v", err)
		}
		if got := health(w, target); got != 60 {
			t.Errorf("amount %v changed health to %d", tt.amount, got)
		}
		if n := p.Bus.Len(); n != 0 {
			t.Errorf("amount %v published %d facts", tt.amount, n)
		}
	}
}

func TestConsumedCommandIsNotReapplied(t *testing.T) {
	w, p := newPipeline(t, Authority)
	target := spawnAt(w, 100, 100)
	if err := p.Engine.Enqueue(w, hit(target, donburi.Null, 10)); err != nil {
		t.Fatal(err)
	}

	first, err := p.Engine.Process(w, 1)
	if err != nil || len(first) != 1 {
		t.Fatalf("first pass applied %d (err %v), want 1", len(first), err)
	}
	second, err := p.Engine.Process(w, 2)
	if err != nil || len(second) != 0 {
		t.Fatalf("second pass applied %d (err %v), want 0", len(second), err)
	}
	if got := health(w, target); got != 90 {
		t.Fatalf("health = %d, want 90", got)
	}
	if n := len(p.Bus.Drain()); n != 1 {
		t.Fatalf("published %d facts, want 1", n)
	}
}

func TestLethalHitKillsAndStartsTimer(t *testing.T) {
	w, p := newPipeline(t, Authority)
	attacker := spawnAt(w, 100, 100)
	target := spawnAt(w, 30, 100)

	if err := p.Engine.Enqueue(w, hit(target, attacker, 50)); err != nil {
		t.Fatal(err)
	}
	report, err := p.Tick(w, 0.05)
	if err != nil {
		t.Fatal(err)
	}

	if got := health(w, target); got != 0 {
		t.Fatalf("health = %d, want 0", got)
	}
	if got := lifeState(w, target); got != netconfig.Dead {
		t.Fatalf("life state = %v, want dead", got)
	}
	entry := w.Entry(target)
	if !entry.HasComponent(components.RespawnTimer) {
		t.Fatal("dead entity has no respawn timer")
	}
	if got := components.RespawnTimer.Get(entry).Remaining; got != 5.0 {
		t.Fatalf("respawn remaining = %v, want 5.0", got)
	}
	if got := components.Death.Get(entry); got.Killer != attacker || got.Tick != report.Tick {
		t.Fatalf("death record = %+v, want killer %v at tick %d", got, attacker, report.Tick)
	}
	mirror := netcomponents.NetLifeState.Get(entry)
	if mirror.State != netconfig.Dead || mirror.RespawnRemaining != 5.0 {
		t.Fatalf("mirror = %+v, want dead with 5s", *mirror)
	}

	_, deaths := splitFacts(p.Bus.Drain())
	if len(deaths) != 1 || deaths[0].Victim != target || deaths[0].Killer != attacker {
		t.Fatalf("death facts = %+v", deaths)
	}
	checkLifeInvariant(t, w)
}

func TestRespawnWhenTimerExpires(t *testing.T) {
	w, p := newPipeline(t, Authority)
	target := spawnAt(w, 0, 100)
	if _, err := p.Tick(w, 0.1); err != nil { // dies
		t.Fatal(err)
	}
	components.RespawnTimer.Get(w.Entry(target)).Remaining = 0.05
	p.Bus.Drain()

	report, err := p.Tick(w, 0.1)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Respawned) != 1 || report.Respawned[0] != target {
		t.Fatalf("respawned = %v, want [%v]", report.Respawned, target)
	}

	entry := w.Entry(target)
	if lifeState(w, target) != netconfig.Alive {
		t.Fatal("entity did not come back alive")
	}
	if got := health(w, target); got != 100 {
		t.Fatalf("health = %d, want max 100", got)
	}
	if entry.HasComponent(components.RespawnTimer) || entry.HasComponent(components.Death) || entry.HasComponent(tags.Dead) {
		t.Fatal("death state left behind after respawn")
	}
	if got := *components.Position.Get(entry); got != mgl64.Vec3(spawnPoint) {
		t.Fatalf("position = %v, want spawn %v", got, spawnPoint)
	}
	mirror := netcomponents.NetLifeState.Get(entry)
	if mirror.State != netconfig.Alive || mirror.RespawnRemaining != 0 {
		t.Fatalf("mirror = %+v, want alive with 0", *mirror)
	}
	if n := p.Bus.Len(); n != 0 {
		t.Fatalf("respawn published %d facts, want none", n)
	}
	checkLifeInvariant(t, w)
}

func TestCommandsApplyInArrivalOrderWithSingleDeath(t *testing.T) {
	w, p := newPipeline(t, Authority)
	target := spawnAt(w, 50, 100)
	a := spawnAt(w, 100, 100)
	b := spawnAt(w, 100, 100)

	if err := p.Engine.Enqueue(w, hit(target, a, 40)); err != nil {
		t.Fatal(err)
	}
	if err := p.Engine.Enqueue(w, hit(target, b, 40)); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Tick(w, 0.05); err != nil {
		t.Fatal(err)
	}

	facts := p.Bus.Drain()
	dmg, deaths := splitFacts(facts)
	if len(dmg) != 2 {
		t.Fatalf("damage facts = %d, want 2", len(dmg))
	}
	if dmg[0].Attacker != a || dmg[0].HealthAfter != 10 {
		t.Fatalf("first hit = %+v, want attacker a leaving 10", dmg[0])
	}
	if dmg[1].Attacker != b || dmg[1].HealthAfter != 0 || !dmg[1].Lethal() {
		t.Fatalf("second hit = %+v, want attacker b leaving 0", dmg[1])
	}
	if total := dmg[0].Amount + dmg[1].Amount; total != 80 {
		t.Fatalf("total applied = %d, want 80", total)
	}
	if len(deaths) != 1 || deaths[0].Killer != b {
		t.Fatalf("death facts = %+v, want exactly one credited to b", deaths)
	}
	if _, ok := facts[len(facts)-1].(bus.DeathFact); !ok {
		t.Fatal("death fact should follow the damage facts that caused it")
	}
}

func TestNegativeAmountPublishesNothing(t *testing.T) {
	w, p := newPipeline(t, Authority)
	target := spawnAt(w, 70, 100)
	if err := p.Engine.Enqueue(w, hit(target, donburi.Null, -5)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("err = %v, want ErrInvalidAmount", err)
	}
	if _, err := p.Tick(w, 0.05); err != nil {
		t.Fatal(err)
	}
	if health(w, target) != 70 || p.Bus.Len() != 0 {
		t.Fatalf("health=%d facts=%d, want 70 and 0", health(w, target), p.Bus.Len())
	}
	if _, rejected := p.Engine.Stats(); rejected != 1 {
		t.Fatalf("rejected = %d, want 1", rejected)
	}
}

func TestRespawnLiveness(t *testing.T) {
	tests := []struct {
		duration float64
		dt       float64
	}{
		{5.0, 0.1},
		{5.0, 0.3},
		{1.0, 1.0 / 60},
		{2.5, 0.05},
	}
	for _, tt := range tests {
		combat, respawn := testConfigs()
		respawn.Duration = tt.duration
		w := donburi.NewWorld()
		p := NewPipeline(combat, respawn, Authority, bus.New(nil), spawnPoint, nil)
		target := spawnAt(w, 0, 100)
		if _, err := p.Tick(w, tt.dt); err != nil {
			t.Fatal(err)
		}

		limit := int(math.Ceil(tt.duration / tt.dt))
		ticks := 0
		for lifeState(w, target) == netconfig.Dead {
			if ticks > limit {
				t.Fatalf("duration %v dt %v: still dead after %d ticks, limit %d", tt.duration, tt.dt, ticks, limit)
			}
			if _, err := p.Tick(w, tt.dt); err != nil {
				t.Fatal(err)
			}
			ticks++
			checkLifeInvariant(t, w)
		}
		if ticks > limit {
			t.Fatalf("duration %v dt %v: respawned after %d ticks, limit %d", tt.duration, tt.dt, ticks, limit)
		}
	}
}

func TestInvalidDeltaLeavesTimerUntouched(t *testing.T) {
	for _, dt := range []float64{math.NaN(), -0.5, math.Inf(1), 30} {
		w, p := newPipeline(t, Authority)
		target := spawnAt(w, 0, 100)
		if _, err := p.Tick(w, 0.1); err != nil {
			t.Fatal(err)
		}
		if _, err := p.Tick(w, dt); err != nil {
			t.Fatalf("dt %v: %v", dt, err)
		}
		if got := components.RespawnTimer.Get(w.Entry(target)).Remaining; got != 5.0 {
			t.Errorf("dt %v: remaining = %v, want 5.0", dt, got)
		}
	}
}

func TestDeathEvaluationIsIdempotent(t *testing.T) {
	w, p := newPipeline(t, Authority)
	target := spawnAt(w, 0, 100)

	first, err := p.Life.Evaluate(w, 1)
	if err != nil || len(first) != 1 {
		t.Fatalf("first evaluation: %d deaths, err %v", len(first), err)
	}
	for tick := uint64(2); tick < 5; tick++ {
		again, err := p.Life.Evaluate(w, tick)
		if err != nil || len(again) != 0 {
			t.Fatalf("tick %d: %d deaths, err %v", tick, len(again), err)
		}
	}
	if lifeState(w, target) != netconfig.Dead {
		t.Fatal("entity not dead")
	}
}

func TestDeadTargetIgnoresDamage(t *testing.T) {
	w, p := newPipeline(t, Authority)
	target := spawnAt(w, 0, 100)
	if _, err := p.Tick(w, 0.05); err != nil {
		t.Fatal(err)
	}
	p.Bus.Drain()

	if err := p.Engine.Enqueue(w, hit(target, donburi.Null, 10)); err != nil {
		t.Fatal(err)
	}
	report, err := p.Tick(w, 0.05)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Applied) != 0 || len(report.Deaths) != 0 {
		t.Fatalf("corpse took damage: %+v", report)
	}
	if _, err := p.Engine.Apply(w.Entry(target), hit(target, donburi.Null, 10), 3); !errors.Is(err, ErrTargetDead) {
		t.Fatalf("Apply on corpse: %v, want ErrTargetDead", err)
	}
}

func TestMissingTargetIsRejected(t *testing.T) {
	w, p := newPipeline(t, Authority)
	target := spawnAt(w, 100, 100)
	w.Remove(target)

	if err := p.Engine.Enqueue(w, hit(target, donburi.Null, 10)); !errors.Is(err, ErrTargetMissing) {
		t.Fatalf("err = %v, want ErrTargetMissing", err)
	}

	bare := w.Create(components.Position)
	if err := p.Engine.Enqueue(w, hit(bare, donburi.Null, 10)); !errors.Is(err, ErrTargetMissing) {
		t.Fatalf("entity without ledger: err = %v, want ErrTargetMissing", err)
	}

	noLife := w.Create(components.Health, components.DamageQueue)
	components.Health.SetValue(w.Entry(noLife), components.HealthData{Current: 10, Max: 10})
	if err := p.Engine.Enqueue(w, hit(noLife, donburi.Null, 5)); !errors.Is(err, ErrTargetMissing) {
		t.Fatalf("entity without life state: err = %v, want ErrTargetMissing", err)
	}
	if _, err := p.Engine.Apply(w.Entry(noLife), hit(noLife, donburi.Null, 5), 1); !errors.Is(err, ErrTargetMissing) {
		t.Fatalf("Apply without life state: err = %v, want ErrTargetMissing", err)
	}
	if _, err := p.Tick(w, 0.05); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if got := components.Health.Get(w.Entry(noLife)).Current; got != 10 {
		t.Fatalf("health = %d, want 10", got)
	}
}

func TestApplyRejectsMismatchedEntry(t *testing.T) {
	w, p := newPipeline(t, Authority)
	target := spawnAt(w, 100, 100)
	other := spawnAt(w, 100, 100)

	if _, err := p.Engine.Apply(w.Entry(other), hit(target, donburi.Null, 10), 1); !errors.Is(err, ErrTargetMissing) {
		t.Fatalf("err = %v, want ErrTargetMissing", err)
	}
	if health(w, target) != 100 || health(w, other) != 100 {
		t.Fatalf("health changed: target=%d other=%d", health(w, target), health(w, other))
	}
	if facts := p.Bus.Drain(); len(facts) != 0 {
		t.Fatalf("published %d facts, want none", len(facts))
	}
}

func TestUncappedHugeAmountStaysPositive(t *testing.T) {
	combat, respawn := testConfigs()
	combat.MaxDamagePerHit = 0
	w := donburi.NewWorld()
	p := NewPipeline(combat, respawn, Authority, bus.New(nil), spawnPoint, nil)
	target := spawnAt(w, 100, 100)

	for _, amount := range []float64{1e19, math.MaxFloat64} {
		if err := p.Engine.Enqueue(w, hit(target, donburi.Null, amount)); err != nil {
			t.Fatalf("Enqueue(%v): %v", amount, err)
		}
	}
	if _, err := p.Tick(w, 0.05); err != nil {
		t.Fatal(err)
	}

	dmg, deaths := splitFacts(p.Bus.Drain())
	if len(dmg) != 1 {
		t.Fatalf("damage facts = %d, want 1 (second hit lands on a corpse)", len(dmg))
	}
	if dmg[0].Amount != components.MaxHitPoints || dmg[0].HealthBefore != 100 || dmg[0].HealthAfter != 0 {
		t.Fatalf("fact = %+v, want saturated amount taking 100 to 0", dmg[0])
	}
	if len(deaths) != 1 {
		t.Fatalf("death facts = %d, want 1", len(deaths))
	}
	checkLifeInvariant(t, w)
}

func TestSelfDamageIsAllowedButFlagged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	combat, respawn := testConfigs()
	w := donburi.NewWorld()
	p := NewPipeline(combat, respawn, Authority, bus.New(nil), spawnPoint, zap.New(core))

	self := spawnAt(w, 100, 100)
	if err := p.Engine.Enqueue(w, hit(self, self, 15)); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Tick(w, 0.05); err != nil {
		t.Fatal(err)
	}
	if got := health(w, self); got != 85 {
		t.Fatalf("health = %d, want 85", got)
	}
	dmg, _ := splitFacts(p.Bus.Drain())
	if len(dmg) != 1 || !dmg[0].SelfInflicted {
		t.Fatalf("facts = %+v, want one self-inflicted hit", dmg)
	}
	if logs.FilterMessage("self-inflicted damage").Len() != 1 {
		t.Fatal("self damage was not logged")
	}
}

func TestReplicaCannotMutate(t *testing.T) {
	w, p := newPipeline(t, Replica)
	target := spawnAt(w, 0, 100)

	if _, err := p.Tick(w, 0.1); !errors.Is(err, ErrNotAuthority) {
		t.Fatalf("Tick err = %v, want ErrNotAuthority", err)
	}
	if err := p.Engine.Enqueue(w, hit(target, donburi.Null, 5)); !errors.Is(err, ErrNotAuthority) {
		t.Fatalf("Enqueue err = %v, want ErrNotAuthority", err)
	}
	if _, err := p.Life.Evaluate(w, 1); !errors.Is(err, ErrNotAuthority) {
		t.Fatalf("Evaluate err = %v, want ErrNotAuthority", err)
	}
	if _, err := p.Respawn.Advance(w, 0.1, 1); !errors.Is(err, ErrNotAuthority) {
		t.Fatalf("Advance err = %v, want ErrNotAuthority", err)
	}
	if lifeState(w, target) != netconfig.Alive {
		t.Fatal("replica performed a death transition")
	}
}

func TestParallelPassKeepsPerEntityOrder(t *testing.T) {
	w, p := newPipeline(t, Authority)
	const n = 200
	targets := make([]donburi.Entity, n)
	for i := range targets {
		targets[i] = spawnAt(w, 100, 100)
		for _, amount := range []float64{5, 10, 20} {
			if err := p.Engine.Enqueue(w, hit(targets[i], donburi.Null, amount)); err != nil {
				t.Fatal(err)
			}
		}
	}

	report, err := p.Tick(w, 0.05)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Applied) != 3*n {
		t.Fatalf("applied %d, want %d", len(report.Applied), 3*n)
	}
	for _, e := range targets {
		if got := health(w, e); got != 65 {
			t.Fatalf("entity %v health = %d, want 65", e, got)
		}
	}

	lastSeq := make(map[donburi.Entity]uint64)
	for _, r := range report.Applied {
		if r.Command.Seq <= lastSeq[r.Command.Target] {
			t.Fatalf("entity %v: seq %d applied after %d", r.Command.Target, r.Command.Seq, lastSeq[r.Command.Target])
		}
		lastSeq[r.Command.Target] = r.Command.Seq
	}
}
