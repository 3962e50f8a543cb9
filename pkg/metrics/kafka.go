package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

var (
	KafkaMessagesPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fsm",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of Kafka messages handed to the writer",
		},
		[]string{"topic", "status"},
	)

	KafkaProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fsm",
			Subsystem: "kafka",
			Name:      "message_processing_duration_seconds",
			Help:      "Kafka message processing duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"topic", "consumer_group", "status"},
	)

	KafkaMessagesProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fsm",
			Subsystem: "kafka",
			Name:      "messages_processed_total",
			Help:      "Total number of Kafka messages processed",
		},
		[]string{"topic", "consumer_group", "status"},
	)

	KafkaDLQMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fsm",
			Subsystem: "kafka",
			Name:      "dlq_messages_total",
			Help:      "Total number of failed messages routed to the dead letter topic",
		},
		[]string{"topic", "consumer_group", "status"},
	)

	KafkaActiveConsumerGroups = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fsm",
			Subsystem: "kafka",
			Name:      "active_consumer_groups",
			Help:      "Number of consumer group sessions currently polling",
		},
	)
)

func init() {
	Registry.MustRegister(
		KafkaMessagesPublished,
		KafkaProcessingDuration,
		KafkaMessagesProcessed,
		KafkaDLQMessages,
		KafkaActiveConsumerGroups,
	)
}
