package driven

// AuthMetrics records credential flow outcomes. Implementations must be safe
// for concurrent use.
type AuthMetrics interface {
	// FlowCompleted counts a flow (login, register, ...) by outcome label
	FlowCompleted(flow, outcome string)

	// TokenVerified counts token verifications by purpose and result label
	TokenVerified(purpose, result string)

	// CacheOperation counts cache operations by op and result label
	CacheOperation(op, result string)
}
