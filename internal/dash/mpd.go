package dash

import (
	"encoding/xml"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"dashgrab/internal/models"
)

// Namespace is the MPD schema namespace the parser accepts.
const Namespace = "urn:mpeg:dash:schema:mpd:2011"

// ErrManifestEmpty reports a manifest that yielded no usable representations.
// Callers treat it as "no DASH options for this asset", not as a failure.
var ErrManifestEmpty = errors.New("manifest contains no usable representations")

// MPD is the root element of a Media Presentation Description.
type MPD struct {
	XMLName                   xml.Name `xml:"urn:mpeg:dash:schema:mpd:2011 MPD"`
	Type                      string   `xml:"type,attr"`
	Profiles                  string   `xml:"profiles,attr"`
	MediaPresentationDuration string   `xml:"mediaPresentationDuration,attr"`
	Periods                   []Period `xml:"Period"`
}

// Period represents a media content period. Only the first one is used.
type Period struct {
	ID              string           `xml:"id,attr"`
	BaseURL         string           `xml:"BaseURL"`
	SegmentTemplate *SegmentTemplate `xml:"SegmentTemplate"`
	Sets            []AdaptationSet  `xml:"AdaptationSet"`
}

// AdaptationSet represents a set of interchangeable representations.
type AdaptationSet struct {
	ID              string           `xml:"id,attr"`
	ContentType     string           `xml:"contentType,attr"`
	Lang            string           `xml:"lang,attr,omitempty"`
	MimeType        string           `xml:"mimeType,attr"`
	Representations []Representation `xml:"Representation"`
	SegmentTemplate *SegmentTemplate `xml:"SegmentTemplate"`
}

// Representation represents a specific media stream.
type Representation struct {
	ID              string           `xml:"id,attr"`
	MimeType        string           `xml:"mimeType,attr"`
	Bandwidth       int              `xml:"bandwidth,attr"`
	Codecs          string           `xml:"codecs,attr"`
	Width           int              `xml:"width,attr,omitempty"`
	Height          int              `xml:"height,attr,omitempty"`
	SegmentTemplate *SegmentTemplate `xml:"SegmentTemplate"`
}

// SegmentTemplate defines the URL structure for segments.
type SegmentTemplate struct {
	Timescale      *int   `xml:"timescale,attr"`
	Duration       int    `xml:"duration,attr"`
	StartNumber    int    `xml:"startNumber,attr"`
	Initialization string `xml:"initialization,attr"`
	Media          string `xml:"media,attr"`
}

// Manifest is the result of parsing an MPD: the representations a download can address.
type Manifest struct {
	// URL is the location the manifest was fetched from.
	URL string
	// BaseURL is URL with its final path segment removed, resolved
	// against the period's BaseURL element when one is present.
	BaseURL string
	// PeriodBaseURL is the raw BaseURL element of the first period.
	PeriodBaseURL string
	// Duration is mediaPresentationDuration, or 0 when absent.
	Duration time.Duration
	Video    []models.Representation
	Audio    []models.Representation
}

// Empty reports whether the manifest has no usable representations.
func (m Manifest) Empty() bool {
	return len(m.Video) == 0 && len(m.Audio) == 0
}

// FirstAudio returns the first audio representation in document order.
func (m Manifest) FirstAudio() (models.Representation, bool) {
	if len(m.Audio) == 0 {
		return models.Representation{}, false
	}
	return m.Audio[0], true
}

// Unmarshal decodes an MPD document.
func Unmarshal(data []byte) (*MPD, error) {
	var mpd MPD
	if err := xml.Unmarshal(data, &mpd); err != nil {
		return nil, fmt.Errorf("failed to unmarshal MPD XML: %w", err)
	}
	return &mpd, nil
}

// ParseManifest extracts the video and audio representations of an MPD.
// Malformed XML or a document outside the MPD namespace yields an empty
// manifest rather than an error.
func ParseManifest(data []byte) Manifest {
	mpd, err := Unmarshal(data)
	if err != nil {
		return Manifest{}
	}
	return mpd.Manifest()
}

// Manifest flattens the first period into per-category representation lists.
// Each representation takes its template from the nearest enclosing node.
func (m *MPD) Manifest() Manifest {
	var out Manifest
	if d, err := parseDuration(m.MediaPresentationDuration); err == nil {
		out.Duration = d
	}
	if len(m.Periods) == 0 {
		return out
	}

	period := &m.Periods[0]
	out.PeriodBaseURL = strings.TrimSpace(period.BaseURL)
	for i := range period.Sets {
		as := &period.Sets[i]
		for j := range as.Representations {
			rep := &as.Representations[j]
			category, ok := categorize(as, rep)
			if !ok {
				continue
			}
			tmpl := nearestTemplate(period, as, rep)
			if tmpl == nil {
				continue
			}
			converted := models.Representation{
				ID:           rep.ID,
				MimeCategory: category,
				Bandwidth:    rep.Bandwidth,
				Codecs:       rep.Codecs,
				Width:        rep.Width,
				Height:       rep.Height,
				Template:     tmpl.model(),
			}
			if !converted.Template.Valid() {
				continue
			}
			switch category {
			case models.MimeVideo:
				out.Video = append(out.Video, converted)
			case models.MimeAudio:
				out.Audio = append(out.Audio, converted)
			}
		}
	}
	return out
}

func categorize(as *AdaptationSet, rep *Representation) (models.MimeCategory, bool) {
	for _, candidate := range []string{as.MimeType, rep.MimeType, as.ContentType} {
		switch {
		case strings.HasPrefix(candidate, "video"):
			return models.MimeVideo, true
		case strings.HasPrefix(candidate, "audio"):
			return models.MimeAudio, true
		}
	}
	return "", false
}

func nearestTemplate(period *Period, as *AdaptationSet, rep *Representation) *SegmentTemplate {
	switch {
	case rep.SegmentTemplate != nil:
		return rep.SegmentTemplate
	case as.SegmentTemplate != nil:
		return as.SegmentTemplate
	default:
		return period.SegmentTemplate
	}
}

func (st *SegmentTemplate) model() models.SegmentTemplate {
	timescale := 1
	if st.Timescale != nil {
		timescale = *st.Timescale
	}
	return models.SegmentTemplate{
		Media:          st.Media,
		Initialization: st.Initialization,
		Duration:       st.Duration,
		Timescale:      timescale,
		StartNumber:    st.StartNumber,
	}
}

var durationPart = regexp.MustCompile(`(\d+\.?\d*)([HMS])`)

// parseDuration parses an ISO 8601 duration string like "PT1H2M8.5S".
func parseDuration(duration string) (time.Duration, error) {
	if duration == "" {
		return 0, nil
	}
	if !strings.HasPrefix(duration, "PT") {
		return 0, fmt.Errorf("unsupported ISO 8601 duration %q", duration)
	}

	rest := strings.TrimPrefix(duration, "PT")
	matches := durationPart.FindAllStringSubmatch(rest, -1)
	if len(matches) == 0 && rest != "" {
		return 0, errors.New("invalid ISO 8601 duration format")
	}

	var total time.Duration
	for _, match := range matches {
		value, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			return 0, err
		}
		switch match[2] {
		case "H":
			total += time.Duration(value * float64(time.Hour))
		case "M":
			total += time.Duration(value * float64(time.Minute))
		case "S":
			total += time.Duration(value * float64(time.Second))
		}
	}
	return total, nil
}
