package entity

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/enlighten-app/enlighten-chat/pkg/constant"
)

// NowUnixMilli returns current unix timestamp in milliseconds
func NowUnixMilli() int64 {
	return time.Now().UnixMilli()
}

// SortPair returns the two user Ids in lexicographic order
func SortPair(userA, userB string) (string, string) {
	users := []string{userA, userB}
	sort.Strings(users)
	return users[0], users[1]
}

// GenPairConversationId generates the conversation Id for a user pair.
// Format: si_{min(userA,userB)}:{max(userA,userB)}
// Uses ":" as separator between userIds to support userIds containing "_".
// The Id is symmetric: both orderings of the pair map to the same value.
func GenPairConversationId(userA, userB string) string {
	a, b := SortPair(userA, userB)
	return fmt.Sprintf("%s%s:%s", constant.PairConversationPrefix, a, b)
}

// IsPairConversation checks if conversation Id is for a user pair
func IsPairConversation(conversationId string) bool {
	return len(conversationId) > 3 && conversationId[:3] == constant.PairConversationPrefix
}

// ParsePairConversationId extracts both participants from a conversation Id.
// Returns ok=false if the Id is not a valid pair conversation Id.
func ParsePairConversationId(conversationId string) (string, string, bool) {
	if !IsPairConversation(conversationId) {
		return "", "", false
	}
	participants := conversationId[3:]
	idx := strings.Index(participants, ":")
	if idx == -1 {
		return "", "", false
	}
	return participants[:idx], participants[idx+1:], true
}
