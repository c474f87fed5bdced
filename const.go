package match

const (
	// EngineVersion is the current version of the matching engine
	EngineVersion = "v1.0.0"

	// DefaultMarketID names the single market simulated by the engine.
	DefaultMarketID = "SIM"

	// DefaultDepthLimit is the number of levels per side returned when a
	// depth request names no limit.
	DefaultDepthLimit = 20

	defaultCommandBuffer = 32768
)
