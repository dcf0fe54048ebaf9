package models

// Community is a guild the observing account belongs to.
type Community struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Member is the result of a successful membership probe.
type Member struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

// MutualityResult reports how many communities an author shares with the observing account.
// The count stops at the scan threshold; the true number may be higher.
type MutualityResult struct {
	AuthorID             string `json:"userId"`
	DisplayName          string `json:"usernameTag"`
	MutualCommunityCount int    `json:"mutualCount"`
}

// CaseSummary is one line of the flagged-users listing.
type CaseSummary struct {
	AuthorID    string `json:"userId"`
	DisplayName string `json:"username"`
	Count       int    `json:"count"`
	Archived    bool   `json:"archived"`
}
