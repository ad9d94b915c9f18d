package worlddto

import "time"

// WorldImage is a fetched render ready to be relayed to a room.
type WorldImage struct {
	CanonicalID string
	DisplayName string
	SourceURL   string
	PNG         []byte
	Requester   string
	FetchedAt   time.Time
}

// WorldLinks lists where a world's render would be served from.
type WorldLinks struct {
	CanonicalID string
	DisplayName string
	Name        string
	PrimaryURL  string
	FallbackURL string
}
