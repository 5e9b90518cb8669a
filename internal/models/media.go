package models

// MediaKind is the kind of asset a descriptor refers to.
type MediaKind string

const (
	KindAudio MediaKind = "audio"
	KindVideo MediaKind = "video"
)

// DashLabel marks a source whose URL points at a DASH manifest.
const DashLabel = "DASH"

// DefaultSubtitleLang is used when a subtitle track carries no language.
const DefaultSubtitleLang = "ca"

// Source is one downloadable source listed for an asset.
type Source struct {
	Label string
	URL   string
}

// IsDash reports whether the source is a DASH manifest.
func (s Source) IsDash() bool {
	return s.Label == DashLabel
}

// Variant is an alternative version of the asset (e.g. with audio description).
type Variant struct {
	Name    string
	Label   string
	Sources []Source
}

// SubtitleTrack is one caption track listed for an asset.
type SubtitleTrack struct {
	Name string
	URL  string
	Lang string
}

// MediaDescriptor is the resolved description of an asset.
// It is immutable once produced by the catalog layer.
type MediaDescriptor struct {
	ID              string
	Title           string
	DurationSeconds float64
	Kind            MediaKind
	Sources         []Source
	Variants        []Variant
	Subtitles       []SubtitleTrack
}

// DirectExtension returns the file extension used for whole-file downloads.
func (d MediaDescriptor) DirectExtension() string {
	if d.Kind == KindAudio {
		return ".mp3"
	}
	return ".mp4"
}
