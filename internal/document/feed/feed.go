package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"collabdocs/internal/document/model"
	"collabdocs/pkg/docerr"
	"collabdocs/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const DefaultPrefix = "documents"

// Feed publishes written snapshots on Redis pub/sub, one channel per document.
type Feed struct {
	rc     *redis.Client
	prefix string
	// Backoff between reconnect attempts in SubscribeAll.
	Backoff time.Duration
}

func NewFeed(rc *redis.Client, prefix string) *Feed {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Feed{rc: rc, prefix: prefix, Backoff: time.Second}
}

func (f *Feed) channel(id string) string {
	return f.prefix + ":" + id
}

// Publish announces doc to every subscriber of its channel.
func (f *Feed) Publish(ctx context.Context, doc model.Snapshot) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal snapshot %s: %w", doc.ID, err)
	}
	if err := f.rc.Publish(ctx, f.channel(doc.ID), data).Err(); err != nil {
		return fmt.Errorf("%w: publish %s: %v", docerr.ErrStoreUnreachable, doc.ID, err)
	}
	return nil
}

// Subscribe streams snapshots published for id. The returned channel is closed
// when ctx is done; if the pub/sub connection drops first, one Update carrying
// ErrStoreUnreachable is delivered before closing.
func (f *Feed) Subscribe(ctx context.Context, id string) (<-chan model.Update, error) {
	sub := f.rc.Subscribe(ctx, f.channel(id))
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("%w: subscribe %s: %v", docerr.ErrStoreUnreachable, id, err)
	}

	out := make(chan model.Update)
	go func() {
		defer close(out)
		defer sub.Close()
		err := receive(ctx, sub, func(msg *redis.Message) bool {
			doc, ok := decode(msg)
			if !ok {
				return true
			}
			select {
			case out <- model.Update{Snapshot: doc}:
				return true
			case <-ctx.Done():
				return false
			}
		})
		if err == nil {
			return
		}
		logger.Sugar.Warnf("Feed for document %s lost: %v", id, err)
		select {
		case out <- model.Update{Err: fmt.Errorf("%w: feed for %s: %v", docerr.ErrStoreUnreachable, id, err)}:
		case <-ctx.Done():
		}
	}()
	return out, nil
}

// SubscribeAll calls handle for every snapshot published on any document
// channel until ctx is done. A lost connection is re-established after
// Backoff.
func (f *Feed) SubscribeAll(ctx context.Context, handle func(doc model.Snapshot)) {
	for {
		sub := f.rc.PSubscribe(ctx, f.prefix+":*")
		err := receive(ctx, sub, func(msg *redis.Message) bool {
			doc, ok := decode(msg)
			if !ok {
				return true
			}
			if doc.ID == "" {
				doc.ID = strings.TrimPrefix(msg.Channel, f.prefix+":")
			}
			handle(doc)
			return true
		})
		sub.Close()
		if ctx.Err() != nil {
			return
		}
		logger.Sugar.Errorf("Document feed lost, reconnecting: %v", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(f.Backoff):
		}
	}
}

// receive passes every message on sub to handle until handle returns false,
// ctx is done or the connection fails. Only the connection failure is
// returned. ReceiveMessage does not watch ctx, so sub is closed when ctx ends.
func receive(ctx context.Context, sub *redis.PubSub, handle func(msg *redis.Message) bool) error {
	stop := context.AfterFunc(ctx, func() { sub.Close() })
	defer stop()
	for {
		msg, err := sub.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if !handle(msg) {
			return nil
		}
	}
}

func decode(msg *redis.Message) (model.Snapshot, bool) {
	var doc model.Snapshot
	if err := json.Unmarshal([]byte(msg.Payload), &doc); err != nil {
		logger.Sugar.Errorf("Unable to parse snapshot on %s: %v", msg.Channel, err)
		return model.Snapshot{}, false
	}
	return doc, true
}
