package bus

import (
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"go.uber.org/zap/zapcore"
)

func damage(amount int) DamageFact {
	return DamageFact{ID: NewFactID(), Amount: amount}
}

func TestDrainPreservesPublishOrderAndClears(t *testing.T) {
	b := New(nil)
	b.Publish(damage(1))
	b.Publish(DeathFact{ID: NewFactID()})
	b.Publish(damage(3))

	facts := b.Drain()
	if len(facts) != 3 {
		t.Fatalf("Drain returned %d facts, want 3", len(facts))
	}
	if facts[0].(DamageFact).Amount != 1 || facts[1].Kind() != KindDeath || facts[2].(DamageFact).Amount != 3 {
		t.Fatalf("unexpected order: %+v", facts)
	}
	if again := b.Drain(); len(again) != 0 {
		t.Fatalf("bus kept %d facts after drain", len(again))
	}
}

func TestEverySubscriberSeesEachFactOnce(t *testing.T) {
	b := New(nil)
	var ui, audio []int
	On(b, "ui", func(f DamageFact) error { ui = append(ui, f.Amount); return nil })
	On(b, "audio", func(f DamageFact) error { audio = append(audio, f.Amount); return nil })

	b.Publish(damage(5))
	b.Publish(damage(7))
	if n := b.Pump(); n != 2 {
		t.Fatalf("Pump delivered %d facts, want 2", n)
	}
	b.Pump()

	for name, got := range map[string][]int{"ui": ui, "audio": audio} {
		if len(got) != 2 || got[0] != 5 || got[1] != 7 {
			t.Errorf("%s saw %v, want [5 7]", name, got)
		}
	}
}

func TestSubscriberFailureIsIsolated(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	b := New(zap.New(core))

	var delivered int
	On(b, "panics", func(DamageFact) error { panic("missing indicator object") })
	On(b, "errors", func(DamageFact) error { return errors.New("audio device gone") })
	On(b, "telemetry", func(DamageFact) error { delivered++; return nil })

	b.Publish(damage(1))
	b.Publish(damage(2))
	b.Pump()

	if delivered != 2 {
		t.Fatalf("healthy subscriber got %d facts, want 2", delivered)
	}
	if b.Failures() != 4 {
		t.Fatalf("Failures() = %d, want 4", b.Failures())
	}
	if n := logs.FilterMessage("subscriber failed").Len(); n != 4 {
		t.Fatalf("logged %d failures, want 4", n)
	}
}

func TestKindRouting(t *testing.T) {
	b := New(nil)
	var deaths, hits int
	On(b, "deaths", func(DeathFact) error { deaths++; return nil })
	On(b, "hits", func(DamageFact) error { hits++; return nil })

	b.Publish(damage(1))
	b.Publish(DeathFact{ID: NewFactID()})
	b.Publish(DeathFact{ID: NewFactID()})
	b.Pump()

	if hits != 1 || deaths != 2 {
		t.Fatalf("hits=%d deaths=%d, want 1 and 2", hits, deaths)
	}
	if b.SubscriberCount(KindDeath) != 1 {
		t.Fatalf("SubscriberCount(death) = %d", b.SubscriberCount(KindDeath))
	}
}

func TestConcurrentPublish(t *testing.T) {
	b := New(nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				b.Publish(damage(j))
			}
		}()
	}
	wg.Wait()
	if n := len(b.Drain()); n != 800 {
		t.Fatalf("drained %d facts, want 800", n)
	}
}

func TestLethal(t *testing.T) {
	if !(DamageFact{HealthBefore: 10, HealthAfter: 0}).Lethal() {
		t.Fatal("10 -> 0 should be lethal")
	}
	if (DamageFact{HealthBefore: 10, HealthAfter: 4}).Lethal() {
		t.Fatal("10 -> 4 is not lethal")
	}
}
