package constant

// Message kinds
const (
	KindText       = 1
	KindFile       = 2
	KindCallInvite = 3
)

// KindName converts a message kind to its wire name
func KindName(kind int32) string {
	switch kind {
	case KindText:
		return "text"
	case KindFile:
		return "file"
	case KindCallInvite:
		return "call"
	default:
		return "unknown"
	}
}

// KindFromName converts a wire name to a message kind (0 if unknown)
func KindFromName(name string) int32 {
	switch name {
	case "text":
		return KindText
	case "file":
		return KindFile
	case "call":
		return KindCallInvite
	default:
		return 0
	}
}

// Realtime event names carried in the websocket envelope
const (
	EventAnnounce         = "announce"
	EventSend             = "send"
	EventReceive          = "receive"
	EventSendConfirmation = "send_confirmation"
	EventSendError        = "send_error"
	EventPresence         = "presence"
)

// DefaultLanguage is the platform default. Recipients whose profile language
// equals it skip the translation side-channel.
const DefaultLanguage = "english"

// Conversation Id prefix for a user pair
const PairConversationPrefix = "si_"

// Online status
const (
	StatusOffline = 0
	StatusOnline  = 1
)

// Platform Ids
const (
	PlatformIdUnknown = 0
	PlatformIdIOS     = 1
	PlatformIdAndroid = 2
	PlatformIdWeb     = 5
)

// Redis key patterns (without prefix, use RedisKey() to get full key)
const (
	redisKeyOnline = "online:%s" // online:{user_id}
)

// redisKeyPrefix is the global prefix for all Redis keys
var redisKeyPrefix = "enlighten:"

// InitRedisKeyPrefix initializes the Redis key prefix from config
func InitRedisKeyPrefix(prefix string) {
	if prefix != "" {
		redisKeyPrefix = prefix
	}
}

// GetRedisKeyPrefix returns the current Redis key prefix
func GetRedisKeyPrefix() string {
	return redisKeyPrefix
}

// Redis key getters with prefix
func RedisKeyOnline() string { return redisKeyPrefix + redisKeyOnline }
