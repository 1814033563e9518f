package repository

import (
	"context"

	"SimEcon/internal/domain/models"
	"SimEcon/internal/domain/repository"
	pkgkafka "SimEcon/pkg/kafka"
)

// DefaultTransactionTopic carries every committed journal record.
const DefaultTransactionTopic = "simecon.transactions"

// KafkaTransactionPublisher writes journal records keyed by owning actor so
// a single actor's history stays ordered within one partition.
type KafkaTransactionPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaTransactionPublisher(producer *pkgkafka.Producer, topic string) repository.TransactionPublisher {
	if topic == "" {
		topic = DefaultTransactionTopic
	}
	return &KafkaTransactionPublisher{producer: producer, topic: topic}
}

func (p *KafkaTransactionPublisher) Publish(ctx context.Context, tx *models.Transaction) error {
	if tx == nil {
		return nil
	}
	return p.producer.Publish(ctx, p.topic, actorKey(tx), tx)
}

func (p *KafkaTransactionPublisher) PublishBatch(ctx context.Context, txs []*models.Transaction) error {
	msgs := transactionMessages(txs)
	if len(msgs) == 0 {
		return nil
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

// Close is a no-op: the producer is shared with the log collector and is
// closed by its owner.
func (p *KafkaTransactionPublisher) Close() error { return nil }

func transactionMessages(txs []*models.Transaction) []pkgkafka.Message {
	msgs := make([]pkgkafka.Message, 0, len(txs))
	for _, tx := range txs {
		if tx == nil {
			continue
		}
		msgs = append(msgs, pkgkafka.Message{Key: actorKey(tx), Value: tx})
	}
	return msgs
}

func actorKey(tx *models.Transaction) []byte {
	return []byte(tx.Actor.String())
}
