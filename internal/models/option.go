package models

import "fmt"

// OptionKind discriminates the variants of SourceOption.
type OptionKind int

const (
	OptionDirect OptionKind = iota
	OptionDashVideo
	OptionDashAudio
	OptionSubtitle
)

func (k OptionKind) String() string {
	switch k {
	case OptionDirect:
		return "direct"
	case OptionDashVideo:
		return "dash-video"
	case OptionDashAudio:
		return "dash-audio"
	case OptionSubtitle:
		return "subtitle"
	default:
		return fmt.Sprintf("OptionKind(%d)", int(k))
	}
}

// SourceOption is one acquirable rendition of an asset.
// The concrete type is one of DirectOption, DashVideoOption,
// DashAudioOption or SubtitleOption.
type SourceOption interface {
	Kind() OptionKind
	Label() string
	sourceOption()
}

// DirectOption is a whole file served from a single URL.
type DirectOption struct {
	URL     string
	Quality string
	// Suffix is appended to the title for variant sources, e.g. " (AD)".
	Suffix string
}

func (DirectOption) Kind() OptionKind { return OptionDirect }
func (DirectOption) sourceOption()    {}

func (o DirectOption) Label() string {
	return QualityLabel(0, 0, o.Quality) + o.Suffix
}

// DashVideoOption is a DASH video representation paired with the audio track it is muxed with.
type DashVideoOption struct {
	ManifestURL string
	// BaseURL is the address segment paths resolve against.
	BaseURL string
	// ManifestSeconds is the manifest's presentation duration, 0 when unknown.
	ManifestSeconds float64
	Video           Representation
	Audio           Representation
}

func (DashVideoOption) Kind() OptionKind { return OptionDashVideo }
func (DashVideoOption) sourceOption()    {}

func (o DashVideoOption) Label() string {
	return "Video - " + QualityLabel(o.Video.Width, o.Video.Height, "")
}

// DashAudioOption is a DASH audio representation downloaded on its own.
type DashAudioOption struct {
	ManifestURL     string
	BaseURL         string
	ManifestSeconds float64
	Audio           Representation
}

func (DashAudioOption) Kind() OptionKind { return OptionDashAudio }
func (DashAudioOption) sourceOption()    {}
func (DashAudioOption) Label() string    { return "Audio" }

// SubtitleOption is a caption track.
type SubtitleOption struct {
	URL  string
	Name string
	Lang string
}

func (SubtitleOption) Kind() OptionKind { return OptionSubtitle }
func (SubtitleOption) sourceOption()    {}

func (o SubtitleOption) Label() string {
	if o.Name == "" {
		return o.Lang
	}
	return o.Name
}
