package config

import (
	"errors"
	"fmt"

	"fxstream/pkg/oanda"
)

// Validate reports the first configuration problem that would make the
// pipeline misbehave. It runs before anything connects.
func (c *Config) Validate() error {
	if len(c.Oanda.Instruments) == 0 {
		return errors.New("no instruments configured")
	}
	seenSymbol := make(map[string]bool, len(c.Oanda.Instruments))
	for _, inst := range c.Oanda.Instruments {
		sym := oanda.CanonicalSymbol(inst)
		if seenSymbol[sym] {
			return fmt.Errorf("instrument %s configured twice", sym)
		}
		seenSymbol[sym] = true
	}

	if len(c.Timeframes) == 0 {
		return errors.New("no timeframes configured")
	}
	seenLabel := make(map[string]bool, len(c.Timeframes))
	for _, tf := range c.Timeframes {
		g, err := oanda.ValidateGranularity(tf.Minutes)
		if err != nil {
			return fmt.Errorf("timeframe %q: %w", tf.Label, err)
		}
		label := tf.Label
		if label == "" {
			label = g.DefaultLabel()
		}
		if seenLabel[label] {
			return fmt.Errorf("duplicate timeframe label %q", label)
		}
		seenLabel[label] = true
	}

	if c.Heartbeat.Timeout <= 0 {
		return fmt.Errorf("heartbeat timeout must be positive, got %s", c.Heartbeat.Timeout)
	}
	if c.Heartbeat.CheckInterval <= 0 {
		return fmt.Errorf("heartbeat check interval must be positive, got %s", c.Heartbeat.CheckInterval)
	}

	switch c.Sink.Policy {
	case PolicyBlock, PolicyDropOldest:
	default:
		return fmt.Errorf("unknown sink policy %q", c.Sink.Policy)
	}

	if _, err := c.Aggregation.TimeLocation(); err != nil {
		return err
	}

	if c.Kafka.Enabled && (c.Kafka.Brokers == "" || c.Kafka.Topic == "") {
		return errors.New("kafka enabled without brokers or topic")
	}
	return nil
}
