package config

import "time"

// CombatConfig contains damage validation and health values
type CombatConfig struct {
	// Health
	DefaultHealth int

	// Validation
	MaxDamagePerHit float64 // commands above this are rejected; 0 disables the cap

	// Parallelism
	Workers int // per-entity workers per pass; 0 = GOMAXPROCS
}

// RespawnConfig contains death and respawn timing
type RespawnConfig struct {
	Duration float64 // seconds from death to respawn
	MaxDelta float64 // largest tick delta accepted by the scheduler, seconds
}

// ServerConfig contains dedicated server settings
type ServerConfig struct {
	Port       uint
	TickRate   int // ticks per second
	Name       string
	Authority  bool
	MaxPlayers int

	// Outbound network queue
	OutboxSize  int
	SendTimeout time.Duration

	// Level data used for spawn points
	LevelsDir string
	Level     string

	// Spawn position used when no level is loaded
	SpawnX, SpawnY float64
}

// TickInterval returns the duration of one server tick.
func (s ServerConfig) TickInterval() time.Duration {
	if s.TickRate <= 0 {
		return time.Second / 20
	}
	return time.Second / time.Duration(s.TickRate)
}

// ClientConfig contains headless client settings
type ClientConfig struct {
	Address        string
	AttackInterval time.Duration // 0 disables automatic attacks
	AttackAmount   float64
}

// LogConfig contains logger settings
type LogConfig struct {
	Level       string // debug, info, warn, error
	Development bool
}

// TelemetryConfig contains settings for the combat telemetry recorder
type TelemetryConfig struct {
	Enabled bool
	AppName string // gdata application directory name
}

// Global configuration instances. These hold defaults only; binaries copy
// them, apply flags, and pass the copies to constructors.
var Combat CombatConfig
var Respawn RespawnConfig
var Server ServerConfig
var Client ClientConfig
var Log LogConfig
var Telemetry TelemetryConfig

func init() {
	Combat = CombatConfig{
		DefaultHealth:   100,
		MaxDamagePerHit: 1000,
		Workers:         0,
	}

	Respawn = RespawnConfig{
		Duration: 5.0,
		MaxDelta: 1.0,
	}

	Server = ServerConfig{
		Port:        7373,
		TickRate:    20,
		Name:        "Doomerang Authority",
		Authority:   true,
		MaxPlayers:  16,
		OutboxSize:  256,
		SendTimeout: 2 * time.Second,
		LevelsDir:   "",
		Level:       "",
		SpawnX:      100,
		SpawnY:      100,
	}

	Client = ClientConfig{
		Address:        "localhost:7373",
		AttackInterval: 2 * time.Second,
		AttackAmount:   25,
	}

	Log = LogConfig{
		Level:       "info",
		Development: false,
	}

	Telemetry = TelemetryConfig{
		Enabled: false,
		AppName: "doomerang-authority",
	}
}
