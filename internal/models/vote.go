package models

// VoteAction is the mutation a user requests on a post's vote ledger.
type VoteAction string

const (
	VoteActionUpvote   VoteAction = "upvote"
	VoteActionDownvote VoteAction = "downvote"
	VoteActionRemove   VoteAction = "remove"
)

// Valid reports whether a is a known vote action.
func (a VoteAction) Valid() bool {
	switch a {
	case VoteActionUpvote, VoteActionDownvote, VoteActionRemove:
		return true
	}
	return false
}

// VoteState is a user's current standing on a post.
type VoteState string

const (
	VoteStateUp   VoteState = "upvote"
	VoteStateDown VoteState = "downvote"
	VoteStateNone VoteState = "none"
)

// Value is the contribution of the state to a post's vote score.
func (s VoteState) Value() int {
	switch s {
	case VoteStateUp:
		return 1
	case VoteStateDown:
		return -1
	default:
		return 0
	}
}

// VoteStateFromValue maps a stored vote value back to a state.
func VoteStateFromValue(v int) VoteState {
	switch {
	case v > 0:
		return VoteStateUp
	case v < 0:
		return VoteStateDown
	default:
		return VoteStateNone
	}
}

// NextVote applies action to the current state. Upvoting or downvoting
// leaves the opposite set and toggles membership in the requested one;
// remove leaves both.
func NextVote(current VoteState, action VoteAction) VoteState {
	switch action {
	case VoteActionUpvote:
		if current == VoteStateUp {
			return VoteStateNone
		}
		return VoteStateUp
	case VoteActionDownvote:
		if current == VoteStateDown {
			return VoteStateNone
		}
		return VoteStateDown
	default:
		return VoteStateNone
	}
}

// VoteResult is returned by the vote ledger after a mutation.
type VoteResult struct {
	VoteScore int       `json:"voteScore"`
	UserVote  VoteState `json:"userVote"`
}
