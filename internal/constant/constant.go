package constant

const (
	DevelopmentEnvironment = "development"
	ProductionEnvironment  = "production"
)

const (
	TradeStreamName            = "trade"
	TradeStreamSubjectAll      = "trade.*"
	TradeStreamSubjectExecuted = "trade.executed"
)
