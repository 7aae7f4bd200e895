package memory

import "fmt"

// DefaultModel is used when a caller does not pin a model name.
const DefaultModel = "claude-sonnet-4-20250514"

// ConversationKey identifies one (companion, user) conversation.
// The model name rides along for pipeline configuration but never
// participates in thread identity: switching models must not
// fragment a conversation's history.
type ConversationKey struct {
	companionID string
	userID      string
	modelName   string
}

// NewKey builds a key for a companion-user pair with the default
// model.
func NewKey(companionID, userID string) ConversationKey {
	return ConversationKey{
		companionID: companionID,
		userID:      userID,
		modelName:   DefaultModel,
	}
}

// NewKeyWithModel builds a key with an explicit model name. An empty
// model name falls back to DefaultModel.
func NewKeyWithModel(companionID, userID, modelName string) ConversationKey {
	k := NewKey(companionID, userID)
	if modelName != "" {
		k.modelName = modelName
	}
	return k
}

func (k ConversationKey) CompanionID() string { return k.companionID }
func (k ConversationKey) UserID() string      { return k.userID }
func (k ConversationKey) Model() string       { return k.modelName }

// ThreadID derives the stable lookup key for checkpoint, log, and
// index partitioning. It is a pure function of the companion and
// user identifiers only, URL-safe for the identifier alphabets in
// use (UUIDs, opaque auth subjects), and stable across restarts.
func (k ConversationKey) ThreadID() string {
	return fmt.Sprintf("companion_%s_user_%s", k.companionID, k.userID)
}

func (k ConversationKey) String() string {
	return k.ThreadID()
}
