// Package redis connects to a Redis server and exposes it as a
// kvstore.Store for the actor runtime.
//
// Configuration is described by Config, whose fields are populated from
// environment variables via github.com/caarlos0/env.
//
// # Usage
//
//	store, client, err := redis.NewStore(ctx, cfg, "actorkit")
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
// Register a health-check in the HTTP surface:
//
//	check := redis.Healthcheck(client)
//
// # Errors
//
// Sentinel errors such as ErrRedisNotReady wrap the go-redis errors using
// errors.Join, so errors.Is works on both.
package redis
