package ruleset

import (
	"context"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Listener invalidates a Cache whenever another process publishes a rule set change
type Listener struct {
	cache    *Cache
	listener *pq.Listener
	channel  string
}

// NewListener returns a Listener subscribed to channel on the database at dsn
func NewListener(dsn string, channel string, cache *Cache) (*Listener, error) {
	l := pq.NewListener(dsn, 10*time.Second, time.Minute, func(event pq.ListenerEventType, err error) {
		if err != nil {
			zap.L().Error("Rule set listener event", zap.Int("event", int(event)), zap.Error(err))
		}
	})
	if err := l.Listen(channel); err != nil {
		l.Close()
		return nil, err
	}
	return &Listener{cache: cache, listener: l, channel: channel}, nil
}

// Run invalidates the cache on every notification until ctx is done
func (l *Listener) Run(ctx context.Context) {
	zap.L().Info("Starting rule set listener", zap.String("channel", l.channel))
	defer l.listener.Close()

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("Stopping rule set listener", zap.String("channel", l.channel))
			return
		case n := <-l.listener.Notify:
			// a nil notification follows a reconnection, changes may have been missed
			if n == nil {
				zap.L().Warn("Rule set listener reconnected")
			}
			l.cache.Invalidate()
		case <-time.After(90 * time.Second):
			go l.listener.Ping()
		}
	}
}
