package telemetry

import "go.opentelemetry.io/otel/attribute"

// Span attribute keys used for instrumentation.
const (
	AttrSessionID  = attribute.Key("tracking.session_id")
	AttrPostID     = attribute.Key("feed.post_id")
	AttrHelperID   = attribute.Key("feed.helper_id")
	AttrProvider   = attribute.Key("tracking.provider")
	AttrWorkflowID = attribute.Key("temporal.workflow_id")
)
