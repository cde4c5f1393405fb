package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"fxstream/internal/oanda/sink"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"
)

const flushTimeoutMs = 5000

// messageProducer is the part of *kafka.Producer the publisher uses.
type messageProducer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	Events() chan kafka.Event
	Flush(timeoutMs int) int
	Close()
}

// CandleMessage is the JSON value written for each completed candle.
type CandleMessage struct {
	Exchange string    `json:"exchange"`
	Symbol   string    `json:"symbol"`
	Label    string    `json:"label"`
	Minutes  int       `json:"minutes"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// Publisher writes completed candles to a Kafka topic, keyed by symbol so one
// instrument stays on one partition.
type Publisher struct {
	producer messageProducer
	topic    string
	exchange string
	logger   *zap.Logger
	done     chan struct{}
}

func NewPublisher(brokers, topic, exchange string, logger *zap.Logger) (*Publisher, error) {
	config := kafka.ConfigMap{
		"bootstrap.servers": brokers,
	}

	producer, err := kafka.NewProducer(&config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	p := newPublisher(producer, topic, exchange, logger)
	logger.Info("Kafka producer initialized", zap.String("brokers", brokers), zap.String("topic", topic))
	return p, nil
}

func newPublisher(producer messageProducer, topic, exchange string, logger *zap.Logger) *Publisher {
	p := &Publisher{
		producer: producer,
		topic:    topic,
		exchange: exchange,
		logger:   logger,
		done:     make(chan struct{}),
	}
	go p.deliveryReport()
	return p
}

// deliveryReport drains the producer's event channel and logs failed deliveries.
func (p *Publisher) deliveryReport() {
	defer close(p.done)
	for e := range p.producer.Events() {
		switch ev := e.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				p.logger.Error("candle delivery failed",
					zap.String("key", string(ev.Key)),
					zap.Error(ev.TopicPartition.Error))
			}
		case kafka.Error:
			p.logger.Warn("kafka error", zap.Error(ev))
		}
	}
}

// Publish implements sink.Publisher. Live updates are skipped.
func (p *Publisher) Publish(ev sink.CandleEvent) error {
	if !ev.Completed {
		return nil
	}

	msg, err := p.Message(ev)
	if err != nil {
		return err
	}
	if err := p.producer.Produce(msg, nil); err != nil {
		return fmt.Errorf("produce candle: %w", err)
	}
	return nil
}

// Message builds the Kafka message for a candle event.
func (p *Publisher) Message(ev sink.CandleEvent) (*kafka.Message, error) {
	c := ev.Candle
	value, err := json.Marshal(CandleMessage{
		Exchange: p.exchange,
		Symbol:   c.Symbol,
		Label:    c.Label,
		Minutes:  int(c.Granularity),
		Start:    c.Start.UTC(),
		End:      c.End.UTC(),
		Open:     c.Open,
		High:     c.High,
		Low:      c.Low,
		Close:    c.Close,
		Volume:   c.Volume,
	})
	if err != nil {
		return nil, fmt.Errorf("encode candle: %w", err)
	}

	topic := p.topic
	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(c.Symbol),
		Value:          value,
	}, nil
}

// Close flushes outstanding messages and closes the producer.
func (p *Publisher) Close() {
	if remaining := p.producer.Flush(flushTimeoutMs); remaining > 0 {
		p.logger.Warn("kafka messages left unflushed", zap.Int("count", remaining))
	}
	p.producer.Close()
	<-p.done
	p.logger.Info("Kafka producer closed")
}
