package chat

// ReactionUserPreviewLimit bounds how many contributing user IDs a reaction
// aggregate carries inline. Full enumeration goes through the paginated
// reaction detail fetch.
const ReactionUserPreviewLimit = 3

// Reaction is the aggregate of one reaction content on one message.
type Reaction struct {
	MessageID string
	Content   string
	Count     int
	// AddedBySelf reports whether the local user contributed.
	AddedBySelf bool
	// UserPreview holds up to ReactionUserPreviewLimit contributing user
	// IDs.
	UserPreview []string
}
