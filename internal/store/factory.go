package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Driver names a SessionStore implementation.
type Driver string

const (
	DriverSQLite Driver = "sqlite"
	DriverRedis  Driver = "redis"
	DriverMemory Driver = "memory"
)

// ErrUnknownDriver is returned by Open for unsupported driver names.
var ErrUnknownDriver = errors.New("unknown store driver")

// Options selects and configures a SessionStore.
type Options struct {
	Driver        Driver
	DBPath        string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Open creates the SessionStore described by opts.
func Open(opts Options, logger *slog.Logger) (SessionStore, error) {
	switch opts.Driver {
	case DriverSQLite, "":
		return NewSQLite(opts.DBPath, logger)

	case DriverRedis:
		if opts.RedisAddr == "" {
			return nil, fmt.Errorf("redis driver requires an address")
		}
		client := redis.NewClient(&redis.Options{
			Addr:     opts.RedisAddr,
			Password: opts.RedisPassword,
			DB:       opts.RedisDB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("ping redis at %s: %w", opts.RedisAddr, err)
		}
		return NewRedis(client, logger), nil

	case DriverMemory:
		return NewMemory(logger), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
	}
}
