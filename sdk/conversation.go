package sdk

// PairConversationId derives the conversation id for an unordered user pair,
// matching the server's scheme. The ":" separator keeps user ids containing
// "_" unambiguous.
func PairConversationId(userA, userB string) string {
	a, b := userA, userB
	if a > b {
		a, b = b, a
	}
	return "si_" + a + ":" + b
}
