// Package config provides a type-safe, generic and cached way to load
// application configuration from environment variables.
//
// It wraps `github.com/joho/godotenv` and `github.com/caarlos0/env/v11`:
//
//   - LoadEnv loads one or more `.env` files; the default `.env` in the working
//     directory is loaded automatically and is optional.
//   - Load parses the environment into any struct using field tags and caches
//     the result per type for the lifetime of the process.
//   - Parse does the same without the cache and accepts a key prefix, which is
//     how per-backend connector blocks are read.
//   - MustLoadEnv and MustLoad panic on failure for configuration the process
//     cannot start without.
//
// # Usage
//
//	import "github.com/dmitrymomot/actorkit/pkg/config"
//
//	func main() {
//	    var cfg engine.Config
//	    if err := config.Load(&cfg); err != nil {
//	        log.Fatalf("parsing env: %v", err)
//	    }
//
//	    s3cfg, err := config.Parse[kvstore.S3Config]()
//	    if err != nil {
//	        log.Fatalf("parsing s3 env: %v", err)
//	    }
//	}
//
// # Error Handling
//
// Sentinel errors can be compared with `errors.Is`:
//
//   - ErrParsingConfig: failed to parse env vars into struct.
//   - ErrLoadingEnvFile: an explicitly requested .env file could not be read.
//   - ErrConfigNotLoaded: requested config type has not been loaded yet.
//   - ErrNilPointer: nil pointer passed to Load/MustLoad.
//
// # Testing Helpers
//
// ResetCache clears the global cache between tests. WithEnvironment makes Parse
// read from a map instead of the process environment.
package config
