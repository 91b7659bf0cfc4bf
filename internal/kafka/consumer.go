package kafka

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/snake-lounge/internal/config"
)

// Consumer consumes game events from Kafka
type Consumer struct {
	config        *config.KafkaConfig
	dispatcher    *Dispatcher
	logger        *slog.Logger
	consumerGroup sarama.ConsumerGroup
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	ready         chan bool
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(cfg *config.KafkaConfig, dispatcher *Dispatcher, logger *slog.Logger) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaConfig.Consumer.Return.Errors = true

	consumerGroup, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Consumer{
		config:        cfg,
		dispatcher:    dispatcher,
		logger:        logger,
		consumerGroup: consumerGroup,
		ctx:           ctx,
		cancel:        cancel,
		ready:         make(chan bool),
	}, nil
}

// Start begins consuming messages and returns once the first session is set up
func (c *Consumer) Start() error {
	c.logger.Info("starting Kafka consumer",
		"brokers", c.config.Brokers,
		"topic", c.config.Topic,
		"group_id", c.config.GroupID,
	)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			handler := &consumerGroupHandler{
				consumer: c,
				ready:    c.ready,
			}

			if err := c.consumerGroup.Consume(c.ctx, []string{c.config.Topic}, handler); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				c.logger.Error("error from consumer", "error", err)
			}

			if c.ctx.Err() != nil {
				return
			}

			c.ready = make(chan bool)
		}
	}()

	select {
	case <-c.ready:
	case <-c.ctx.Done():
		return c.ctx.Err()
	}
	c.logger.Info("Kafka consumer ready")

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-c.ctx.Done():
				return
			case err, ok := <-c.consumerGroup.Errors():
				if !ok {
					return
				}
				c.logger.Error("consumer group error", "error", err)
			}
		}
	}()

	return nil
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop() error {
	c.logger.Info("stopping Kafka consumer")
	c.cancel()
	c.wg.Wait()
	return c.consumerGroup.Close()
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler
type consumerGroupHandler struct {
	consumer *Consumer
	ready    chan bool
}

// Setup is called at the beginning of a new session
func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	close(h.ready)
	return nil
}

// Cleanup is called at the end of a session
func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim decodes messages from a partition and applies them in
// batches. Within a partition events keep their order, so snapshots keyed
// by session id are applied in the order they were produced.
func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	cfg := h.consumer.config
	logger := h.consumer.logger
	batch := newBatcher(cfg.BatchSize, func(events []Event) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		applied := h.consumer.dispatcher.HandleBatch(ctx, events)
		logger.Debug("processed batch", "batch_size", len(events), "applied", applied)
	})
	batchTimer := time.NewTimer(cfg.BatchTimeout)
	defer batchTimer.Stop()

	for {
		select {
		case <-session.Context().Done():
			batch.flush()
			return nil

		case <-batchTimer.C:
			batch.flush()
			batchTimer.Reset(cfg.BatchTimeout)

		case message, ok := <-claim.Messages():
			if !ok {
				batch.flush()
				return nil
			}

			event, err := DecodeEvent(message.Value)
			session.MarkMessage(message, "")
			if err != nil {
				logger.Warn("skipping invalid event",
					"error", err,
					"offset", message.Offset,
					"partition", message.Partition,
				)
				h.consumer.dispatcher.Rejected()
				continue
			}

			if batch.add(event) {
				batchTimer.Reset(cfg.BatchTimeout)
			}
		}
	}
}

// batcher accumulates events and hands them off once size is reached
type batcher struct {
	size   int
	events []Event
	apply  func([]Event)
}

func newBatcher(size int, apply func([]Event)) *batcher {
	if size <= 0 {
		size = 1
	}
	return &batcher{size: size, events: make([]Event, 0, size), apply: apply}
}

// add appends e and reports whether that filled and flushed the batch
func (b *batcher) add(e Event) bool {
	b.events = append(b.events, e)
	if len(b.events) >= b.size {
		b.flush()
		return true
	}
	return false
}

func (b *batcher) flush() {
	if len(b.events) == 0 {
		return
	}
	b.apply(b.events)
	b.events = b.events[:0]
}
