package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/artdirector-api/internal/dto"
	"github.com/noah-isme/artdirector-api/internal/grading"
	"github.com/noah-isme/artdirector-api/internal/observability"
)

const (
	statusBufferSize     = 16
	statusResubscribeMin = 100 * time.Millisecond
	statusResubscribeMax = 10 * time.Second
)

// StatusBroker fans terminal status events out to connected stream clients.
// Events are relayed through Redis so workers in other processes reach API nodes.
type StatusBroker interface {
	grading.StatusPublisher
	Start(ctx context.Context)
	Subscribe(identity dto.Identity) (<-chan grading.StatusEvent, func())
}

type statusEnvelope struct {
	Source string              `json:"source"`
	Event  grading.StatusEvent `json:"event"`
	SentAt time.Time           `json:"sent_at"`
}

type statusBroker struct {
	redis   *redis.Client
	channel string
	nodeID  string
	logger  zerolog.Logger

	resubscribeMin time.Duration
	resubscribeMax time.Duration

	mu          sync.RWMutex
	subscribers map[string]map[chan grading.StatusEvent]struct{}
}

// NewStatusBroker constructs a broker. redisClient may be nil for single-process deployments.
func NewStatusBroker(redisClient *redis.Client, channelBase string, logger zerolog.Logger) StatusBroker {
	channel := ""
	if channelBase != "" {
		channel = channelBase + ":submission-status"
	}

	return &statusBroker{
		redis:       redisClient,
		channel:     channel,
		nodeID:      uuid.NewString(),
		logger:      logger.With().Str("component", "status_broker").Logger(),
		subscribers: make(map[string]map[chan grading.StatusEvent]struct{}),

		resubscribeMin: statusResubscribeMin,
		resubscribeMax: statusResubscribeMax,
	}
}

func (b *statusBroker) Start(ctx context.Context) {
	if b.redis != nil && b.channel != "" {
		go b.consumeRedis(ctx)
	}
}

func (b *statusBroker) PublishStatus(ctx context.Context, event grading.StatusEvent) {
	b.broadcast(event)

	if b.redis == nil || b.channel == "" {
		return
	}

	payload, err := json.Marshal(statusEnvelope{Source: b.nodeID, Event: event, SentAt: time.Now().UTC()})
	if err != nil {
		b.logger.Warn().Err(err).Msg("failed to encode status event")
		return
	}
	if err := b.redis.Publish(ctx, b.channel, payload).Err(); err != nil {
		b.logger.Warn().Err(err).Msg("failed to relay status event")
	}
}

func (b *statusBroker) Subscribe(identity dto.Identity) (<-chan grading.StatusEvent, func()) {
	channel := make(chan grading.StatusEvent, statusBufferSize)
	keys := subscriberKeys(identity.Subject, identity.ReviewerKey())

	b.mu.Lock()
	for _, key := range keys {
		if _, exists := b.subscribers[key]; !exists {
			b.subscribers[key] = make(map[chan grading.StatusEvent]struct{})
		}
		b.subscribers[key][channel] = struct{}{}
	}
	b.mu.Unlock()
	observability.SSEClientsActive().Inc()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			b.mu.Lock()
			for _, key := range keys {
				if subscribers, ok := b.subscribers[key]; ok {
					delete(subscribers, channel)
					if len(subscribers) == 0 {
						delete(b.subscribers, key)
					}
				}
			}
			close(channel)
			b.mu.Unlock()
			observability.SSEClientsActive().Dec()
		})
	}

	return channel, cleanup
}

func (b *statusBroker) broadcast(event grading.StatusEvent) {
	observability.StatusEvents().WithLabelValues(event.Status).Inc()

	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := make(map[chan grading.StatusEvent]struct{})
	for _, key := range subscriberKeys(event.OwnerID, event.ReviewerKey) {
		for ch := range b.subscribers[key] {
			if _, done := delivered[ch]; done {
				continue
			}
			delivered[ch] = struct{}{}
			select {
			case ch <- event:
			default:
			}
		}
	}
}

// consumeRedis keeps a subscription open until ctx is done, resubscribing
// with capped exponential backoff whenever the connection drops.
func (b *statusBroker) consumeRedis(ctx context.Context) {
	backoff := b.resubscribeMin
	for {
		relayed, err := b.relayRedis(ctx)
		if ctx.Err() != nil {
			return
		}
		if relayed {
			backoff = b.resubscribeMin
		}
		b.logger.Warn().Err(err).Dur("retry_in", backoff).Msg("status redis subscription lost, resubscribing")

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, b.resubscribeMax)
	}
}

// relayRedis broadcasts events from one subscription until it fails. It
// reports whether any message arrived before the failure.
func (b *statusBroker) relayRedis(ctx context.Context) (bool, error) {
	pubsub := b.redis.Subscribe(ctx, b.channel)
	defer func() { _ = pubsub.Close() }()

	relayed := false
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			return relayed, err
		}
		relayed = true

		var envelope statusEnvelope
		if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
			b.logger.Warn().Err(err).Msg("invalid status event payload")
			continue
		}
		if envelope.Source == b.nodeID {
			continue
		}
		b.broadcast(envelope.Event)
	}
}

func subscriberKeys(ownerID, reviewerKey string) []string {
	keys := make([]string, 0, 2)
	if ownerID != "" {
		keys = append(keys, "owner:"+ownerID)
	}
	if reviewerKey != "" {
		keys = append(keys, "reviewer:"+reviewerKey)
	}
	return keys
}
