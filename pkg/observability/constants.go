package observability

const (
	AttrServiceName     = "service.name"
	AttrServiceVersion  = "service.version"
	AttrRequestID       = "lexserve.request_id"
	AttrWord            = "lexserve.word"
	AttrProviderName    = "provider.name"
	AttrLLMModel        = "llm.model"
	AttrLLMTokensInput  = "llm.tokens.input"
	AttrLLMTokensOutput = "llm.tokens.output"
	AttrErrorType       = "error.type"
	AttrStatusCode      = "http.status_code"

	AttrHTTPMethod       = "http.method"
	AttrHTTPPath         = "http.path"
	AttrHTTPStatusCode   = "http.status_code"
	AttrHTTPResponseSize = "http.response_size"

	SpanPipelineRun   = "pipeline.run"
	SpanResolverSearch = "resolver.search"
	SpanProviderFetch = "provider.fetch"
	SpanLLMCall       = "llm.call"
	SpanHTTPRequest   = "http.request"

	DefaultServiceName  = "lexserve"
	DefaultMetricsPath  = "/metrics"
	DefaultOTLPEndpoint = "localhost:4317"
	DefaultSamplingRate = 1.0
)
