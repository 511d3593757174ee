package presentation

import (
	"fmt"

	"github.com/automoto/doomerang-authority/bus"
)

// Sound identifies a one-shot combat sound.
type Sound string

const (
	SoundHit     Sound = "hit"
	SoundSelfHit Sound = "self_hit"
	SoundKill    Sound = "kill"
	SoundDeath   Sound = "death"
)

// SoundPlayer plays sounds. It is provided by the audio layer.
type SoundPlayer interface {
	Play(sound Sound) error
}

// AudioTrigger plays the sound that goes with each fact. The death sound is
// gated per fact so a redelivered death never plays twice.
type AudioTrigger struct {
	player SoundPlayer
	once   *bus.Once
}

func NewAudioTrigger(p SoundPlayer) *AudioTrigger {
	return &AudioTrigger{
		player: p,
		once:   bus.NewOnce(0),
	}
}

// Register subscribes the trigger to b.
func (a *AudioTrigger) Register(b *bus.Bus) {
	bus.On(b, "audio", a.onDamage)
	bus.On(b, "audio", a.onDeath)
}

func (a *AudioTrigger) onDamage(f bus.DamageFact) error {
	if !a.once.Trigger(f.ID) {
		return nil
	}
	sound := SoundHit
	switch {
	case f.SelfInflicted:
		sound = SoundSelfHit
	case f.Lethal():
		sound = SoundKill
	}
	if err := a.player.Play(sound); err != nil {
		return fmt.Errorf("play %s: %w", sound, err)
	}
	return nil
}

func (a *AudioTrigger) onDeath(f bus.DeathFact) error {
	if !a.once.Trigger(f.ID) {
		return nil
	}
	if err := a.player.Play(SoundDeath); err != nil {
		return fmt.Errorf("play %s: %w", SoundDeath, err)
	}
	return nil
}
