package handler

import (
	"encoding/json"

	"github.com/Astemirdum/library-catalog/library/internal/model"
	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// Consumer reacts to catalog events from any instance by asking for a snapshot refresh.
type Consumer struct {
	trigger func()
	log     *zap.Logger
}

func NewConsumer(trigger func(), log *zap.Logger) *Consumer {
	return &Consumer{
		trigger: trigger,
		log:     log.Named("consumer"),
	}
}

func (consumer *Consumer) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

// Cleanup is run at the end of a session, once all ConsumeClaim goroutines have exited.
func (consumer *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (consumer *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				consumer.log.Warn("message channel was closed")
				return nil
			}
			var ev model.Event
			if err := json.Unmarshal(message.Value, &ev); err != nil {
				consumer.log.Error("decode event", zap.Error(err))
				session.MarkMessage(message, "")
				continue
			}
			consumer.log.Debug("event claimed",
				zap.String("type", string(ev.Type)),
				zap.Int64("version", ev.Version),
				zap.Time("timestamp", message.Timestamp))
			consumer.trigger()
			session.MarkMessage(message, "")
		case <-session.Context().Done():
			return nil
		}
	}
}
