package internal

import (
	"fmt"
	"time"
)

type Config struct {
	Host                string        `env:"HOST,default=0.0.0.0"`
	Port                int           `env:"PORT,default=5001"`
	GRPCPort            int           `env:"GRPC_PORT,default=5002"`
	DebugPort           int           `env:"DEBUG_PORT,default=8081"`
	BadgerFilepath      string        `env:"BADGER_FILEPATH,default=./data/chat"`
	BadgerInMemory      bool          `env:"BADGER_IN_MEMORY,default=false"`
	LogLevel            string        `env:"LOG_LEVEL,default=INFO"`
	StaleThreshold      time.Duration `env:"STALE_THRESHOLD,default=10s"`
	SweepInterval       time.Duration `env:"SWEEP_INTERVAL,default=15s"`
	DefaultMessageLimit int           `env:"DEFAULT_MESSAGE_LIMIT,default=100"`
	StoreTimeout        time.Duration `env:"STORE_TIMEOUT,default=5s"`
	RestartInterval     time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	ShutdownTimeout     time.Duration `env:"SHUTDOWN_TIMEOUT,default=5s"`
	CensoredWords       string        `env:"CENSORED_WORDS"`
	CharReplacement     string        `env:"CHARACTER_REPLACEMENT,default=*"`
}

// Validate rejects values the components cannot run with.
func (c Config) Validate() error {
	switch {
	case c.StaleThreshold <= 0:
		return fmt.Errorf("STALE_THRESHOLD must be positive, got %s", c.StaleThreshold)
	case c.SweepInterval <= 0:
		return fmt.Errorf("SWEEP_INTERVAL must be positive, got %s", c.SweepInterval)
	case c.StoreTimeout <= 0:
		return fmt.Errorf("STORE_TIMEOUT must be positive, got %s", c.StoreTimeout)
	case c.DefaultMessageLimit <= 0:
		return fmt.Errorf("DEFAULT_MESSAGE_LIMIT must be positive, got %d", c.DefaultMessageLimit)
	case !c.BadgerInMemory && c.BadgerFilepath == "":
		return fmt.Errorf("BADGER_FILEPATH is required unless BADGER_IN_MEMORY is set")
	}
	return nil
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
