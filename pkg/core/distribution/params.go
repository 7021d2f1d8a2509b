package distribution

const (
	// DistributionMultiplier converts high water mark units into tokens.
	DistributionMultiplier uint64 = 146_000

	// MinSupplyLimitAmt is the supply below which high water mark growth is
	// not capped.
	MinSupplyLimitAmt uint64 = 1_000_000

	// AdjustFactor is the exponent applied to (supply - MinSupplyLimitAmt)
	// when computing the growth limiter.
	AdjustFactor = 0.3

	// EndGoalPercentIncrease is the daily growth the limiter approaches as
	// supply grows, roughly 25% a year.
	EndGoalPercentIncrease = 0.00061

	// FutureUBIVerifiedHumans is the reference population the future UBI
	// pool is held for.
	FutureUBIVerifiedHumans uint64 = 1_000_000_000

	// HistorySize is the number of days of distribution history retained.
	HistorySize = 365
)
