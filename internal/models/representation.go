package models

import "fmt"

// MimeCategory is the media category of a representation.
type MimeCategory string

const (
	MimeVideo MimeCategory = "video"
	MimeAudio MimeCategory = "audio"
)

// SegmentTemplate describes how the segments of a representation are addressed.
type SegmentTemplate struct {
	// Media is the media segment pattern, e.g. "video_$Number$.m4s".
	Media string
	// Initialization is the path of the one-time initialization segment.
	Initialization string
	// Duration is the length of one segment in Timescale units.
	Duration int
	// Timescale is the number of units per second.
	Timescale int
	// StartNumber is the number substituted for the first segment.
	StartNumber int
}

// SegmentSeconds returns the wall-clock length of one segment.
func (t SegmentTemplate) SegmentSeconds() float64 {
	if t.Timescale <= 0 {
		return 0
	}
	return float64(t.Duration) / float64(t.Timescale)
}

// Valid reports whether the template can address segments.
func (t SegmentTemplate) Valid() bool {
	return t.Media != "" && t.Duration > 0 && t.Timescale > 0
}

// Representation is one addressable track extracted from a manifest.
type Representation struct {
	ID           string
	MimeCategory MimeCategory
	Bandwidth    int
	Codecs       string
	Width        int
	Height       int
	Template     SegmentTemplate
}

// Resolution returns "WxH" for video representations, or an empty string.
func (r Representation) Resolution() string {
	if r.Width <= 0 || r.Height <= 0 {
		return ""
	}
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}
