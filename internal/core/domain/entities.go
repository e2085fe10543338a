package domain

import "time"

// Post is a neighbor's help request shown in the feed.
type Post struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Timestamp string    `json:"timestamp"` // relative label, e.g. "15m"
	Content   string    `json:"content"`
	ImageURL  *string   `json:"image_url,omitempty"`
	Likes     int       `json:"likes"`
	Comments  int       `json:"comments"`
	Accepted  bool      `json:"accepted"`
	Address   string    `json:"address,omitempty"`
	Location  *GeoPoint `json:"location,omitempty"`
}

// Match records a helper accepting a post and the tracking session opened for it.
type Match struct {
	ID        string          `json:"id"`
	PostID    string          `json:"post_id"`
	HelperID  string          `json:"helper_id"`
	SessionID string          `json:"session_id"`
	Requester RequesterTarget `json:"requester"`
	Address   string          `json:"address,omitempty"`
	MatchedAt time.Time       `json:"matched_at"`
}
