package broker

import (
	"context"
	"crypto/tls"
	"strings"
	"time"

	"collabdocs/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// Options accepts either a redis:// URL or "host:port[,password=..][,ssl=true]".
func Options(conn string) *redis.Options {
	if opts, err := redis.ParseURL(conn); err == nil {
		return opts
	}
	parts := strings.Split(conn, ",")
	opts := &redis.Options{Addr: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(kv[0])) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.EqualFold(kv[1], "true") {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts
}

// Connect opens a Redis client and pings it with retries. It exits the
// process when Redis stays unreachable.
func Connect(conn string) *redis.Client {
	rc := redis.NewClient(Options(conn))
	var err error
	for i := 0; i < 5; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = rc.Ping(ctx).Err()
		cancel()
		if err == nil {
			logger.Sugar.Info("Successfully connected to redis")
			return rc
		}
		logger.Sugar.Infof("Redis connection failed, retrying in 2s... (%v)", err)
		time.Sleep(2 * time.Second)
	}
	logger.Sugar.Fatalf("Could not connect to redis after retries: %v", err)
	return nil
}
