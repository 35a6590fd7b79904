package nethttp

const (
	headerCorrelationID = "X-Correlation-ID"
	headerUserAgent     = "User-Agent"
)
