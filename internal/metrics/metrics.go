package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// ConsumerMetrics counts event consumption outcomes per topic.
type ConsumerMetrics struct {
	eventsProcessed    *prometheus.CounterVec
	eventsDuplicate    *prometheus.CounterVec
	eventsDeadLettered *prometheus.CounterVec
	eventsRetried      *prometheus.CounterVec
}

// OutboxMetrics counts relay activity.
type OutboxMetrics struct {
	messagesPublished prometheus.Counter
	publishFailures   prometheus.Counter
}

func NewConsumerMetrics() *ConsumerMetrics {
	return newConsumerMetrics(prometheus.DefaultRegisterer)
}

func newConsumerMetrics(registerer prometheus.Registerer) *ConsumerMetrics {
	return &ConsumerMetrics{
		eventsProcessed: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "checkout_events_processed_total",
			Help: "Events whose domain effect was committed",
		}, []string{"topic"}),
		eventsDuplicate: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "checkout_events_duplicate_total",
			Help: "Redelivered events skipped by the inbox dedup check",
		}, []string{"topic"}),
		eventsDeadLettered: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "checkout_events_dead_lettered_total",
			Help: "Events routed to the dead-letter topic after a permanent failure",
		}, []string{"topic"}),
		eventsRetried: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "checkout_events_retried_total",
			Help: "Events left uncommitted for redelivery after a transient failure",
		}, []string{"topic"}),
	}
}

func (m *ConsumerMetrics) Processed(topic string) { m.eventsProcessed.WithLabelValues(topic).Inc() }
func (m *ConsumerMetrics) Duplicate(topic string) { m.eventsDuplicate.WithLabelValues(topic).Inc() }
func (m *ConsumerMetrics) Retried(topic string)   { m.eventsRetried.WithLabelValues(topic).Inc() }

func (m *ConsumerMetrics) DeadLettered(topic string) {
	m.eventsDeadLettered.WithLabelValues(topic).Inc()
}

func NewOutboxMetrics() *OutboxMetrics {
	return newOutboxMetrics(prometheus.DefaultRegisterer)
}

func newOutboxMetrics(registerer prometheus.Registerer) *OutboxMetrics {
	return &OutboxMetrics{
		messagesPublished: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_outbox_published_total",
			Help: "Outbox messages published to Kafka",
		}),
		publishFailures: registerCounter(registerer, prometheus.CounterOpts{
			Name: "checkout_outbox_publish_failures_total",
			Help: "Outbox publish attempts that failed and will be retried",
		}),
	}
}

func (m *OutboxMetrics) Published()     { m.messagesPublished.Inc() }
func (m *OutboxMetrics) PublishFailed() { m.publishFailures.Inc() }

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := already.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}
