// Package config provides environment-based configuration for the BugRelay
// auth platform.
//
// All settings are read from BUGRELAY_* environment variables with sensible
// development defaults; the only hard requirement is BUGRELAY_JWT_SECRET,
// which must be at least 32 bytes. Load validates on startup and fails fast
// on unusable configuration rather than surfacing errors at request time.
//
//	cfg, err := config.Load()
//	if err != nil {
//		log.Fatalf("config: %v", err)
//	}
package config
