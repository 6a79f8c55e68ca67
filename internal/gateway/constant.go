package gateway

import "time"

// Timeout constants
const (
	// WriteWait is time allowed to write a message to the peer
	WriteWait = 10 * time.Second

	// PongWait is time allowed to read the next pong message from the peer
	PongWait = 30 * time.Second

	// PingPeriod is period between pings. Must be less than PongWait
	PingPeriod = (PongWait * 9) / 10

	// MaxMessageSize is maximum message size allowed from peer
	MaxMessageSize = 51200

	// OnlineTTL is how long the distributed online flag lives without a
	// refresh
	OnlineTTL = 60 * time.Second
)

// Query parameter keys
const (
	QueryToken      = "token"
	QueryPlatformId = "platform_id"
)
