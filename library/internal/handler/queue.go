package handler

import (
	"context"
	"encoding/json"

	"github.com/Astemirdum/library-catalog/library/internal/model"
	"github.com/IBM/sarama"
)

// Enqueuer publishes catalog events to a topic. It satisfies service.EventPublisher.
type Enqueuer struct {
	producer sarama.SyncProducer
	topic    string
}

func NewEnqueuer(producer sarama.SyncProducer, topic string) *Enqueuer {
	return &Enqueuer{
		producer: producer,
		topic:    topic,
	}
}

func (q *Enqueuer) Publish(_ context.Context, ev model.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{Topic: q.topic, Value: sarama.ByteEncoder(data)}
	if ev.BookID != "" {
		msg.Key = sarama.StringEncoder(ev.BookID)
	}
	_, _, err = q.producer.SendMessage(msg)
	return err
}

func (q *Enqueuer) Close() error {
	return q.producer.Close()
}
