package kafka

// Topics published by the resolution pipeline.
const (
	// TopicResolutionCompleted carries terminal resolution outcomes.
	TopicResolutionCompleted = "oracle.resolution.completed"

	// TopicRetryScheduled carries retry registrations.
	TopicRetryScheduled = "oracle.resolution.retry_scheduled"

	// TopicRetriesExhausted carries terminal max-retry failures.
	TopicRetriesExhausted = "oracle.resolution.exhausted"
)
