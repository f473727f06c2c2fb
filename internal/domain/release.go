package domain

import "time"

// Release is catalog metadata for an album, as returned by the external
// catalog. IDs are namespaced strings such as "i:12345".
type Release struct {
	CollectionID   string    `json:"collectionId"`
	ArtistID       string    `json:"artistId"`
	CollectionName string    `json:"collectionName"`
	ArtistName     string    `json:"artistName"`
	ArtworkURL     string    `json:"artworkUrl,omitempty"`
	CollectionType string    `json:"collectionType"`
	Explicitness   string    `json:"collectionExplicitness"`
	Genre          string    `json:"primaryGenreName,omitempty"`
	ReleaseDate    time.Time `json:"releaseDate"`
	TrackCount     int       `json:"trackCount"`
}

// SearchParams narrows a catalog search.
type SearchParams struct {
	Limit    int
	Explicit bool
}
