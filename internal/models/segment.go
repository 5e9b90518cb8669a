package models

// Segment identifies one request of a segmented track.
// It is used to report which part of a track failed to download.
type Segment struct {
	// URL is the fully-qualified URL to fetch the segment from.
	URL string
	// ID is a human-readable identifier such as "init" or "12".
	ID string
	// Index is the zero-based media segment index. It is -1 for the initialization segment.
	Index int
	// RepID is the ID of the representation this segment belongs to.
	RepID string
	// IsInit indicates if this is an initialization segment.
	IsInit bool
}
