package pump

// Bus topic names. These are the contract other components subscribe to;
// renaming one is a breaking change the same way renaming a pub/sub
// event name was in the original Python runtime.
const (
	TopicPipelineStart      = "pipeline.start"
	TopicPipelineReady      = "pipeline.ready"
	TopicPipelineNotReady   = "pipeline.not_ready"
	TopicPipelineError      = "pipeline.error"
	TopicPipelineClearError = "pipeline.clear_error"
	TopicPipelineWarning    = "pipeline.warning"
	TopicPipelineCycleEnd   = "pipeline.cycle_end"
	TopicMetricsFlush       = "application.metrics_flush"
)

// MetricsFlushEvent is the payload published on TopicMetricsFlush.
type MetricsFlushEvent struct {
	Name   string
	Values map[string]float64
}
