// Package catalog turns a saved media API response into a MediaDescriptor.
package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"dashgrab/internal/models"

	"golang.org/x/text/unicode/norm"
)

// unsafeTitle matches everything that is not a letter, digit, underscore,
// whitespace or hyphen.
var unsafeTitle = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_\s-]`)

// Hint supplies values the response itself does not carry.
type Hint struct {
	ID   string
	Kind models.MediaKind
}

type document struct {
	ID        string      `json:"id"`
	Kind      string      `json:"kind"`
	Info      information `json:"informacio"`
	Media     media       `json:"media"`
	Variants  []variant   `json:"variants"`
	Subtitles []subtitle  `json:"subtitols"`
}

type information struct {
	Title    *string `json:"titol"`
	Duration struct {
		Millis float64 `json:"milisegons"`
	} `json:"durada"`
}

type media struct {
	URL sourceList `json:"url"`
}

type source struct {
	File  string `json:"file"`
	Label string `json:"label"`
}

// sourceList also accepts a bare URL string, which the API uses for audio.
type sourceList []source

func (l *sourceList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var url string
		if err := json.Unmarshal(data, &url); err != nil {
			return err
		}
		*l = sourceList{{File: url, Label: "MP3"}}
		return nil
	}
	var sources []source
	if err := json.Unmarshal(data, &sources); err != nil {
		return err
	}
	*l = sources
	return nil
}

type variant struct {
	Label string `json:"label"`
	Name  string `json:"nom"`
	Media media  `json:"media"`
}

type subtitle struct {
	Text string `json:"text"`
	URL  string `json:"url"`
	Lang string `json:"iso"`
}

// Load reads the descriptor file at path.
func Load(path string, hint Hint) (models.MediaDescriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.MediaDescriptor{}, fmt.Errorf("failed to open descriptor file: %w", err)
	}
	defer f.Close()
	return Decode(f, hint)
}

// Decode parses a media API response. Fields missing from the document
// are taken from hint; the kind defaults to video.
func Decode(r io.Reader, hint Hint) (models.MediaDescriptor, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return models.MediaDescriptor{}, fmt.Errorf("failed to parse descriptor: %w", err)
	}

	id := firstNonEmpty(doc.ID, hint.ID)
	if id == "" {
		return models.MediaDescriptor{}, errors.New("descriptor has no media id")
	}

	kind := models.MediaKind(strings.ToLower(firstNonEmpty(doc.Kind, string(hint.Kind))))
	switch kind {
	case "":
		kind = models.KindVideo
	case models.KindAudio, models.KindVideo:
	default:
		return models.MediaDescriptor{}, fmt.Errorf("unknown media kind %q", kind)
	}

	millis := doc.Info.Duration.Millis
	if millis < 0 {
		return models.MediaDescriptor{}, fmt.Errorf("negative duration %v", millis)
	}

	fallback := fmt.Sprintf("%s_%s", kind, id)
	title := fallback
	if doc.Info.Title != nil {
		if clean := SanitizeTitle(*doc.Info.Title); clean != "" {
			title = clean
		}
	}

	desc := models.MediaDescriptor{
		ID:              id,
		Title:           title,
		DurationSeconds: millis / 1000,
		Kind:            kind,
		Sources:         convertSources(doc.Media.URL),
	}
	for _, v := range doc.Variants {
		desc.Variants = append(desc.Variants, models.Variant{
			Name:    firstNonEmpty(v.Name, "Variant"),
			Label:   firstNonEmpty(v.Label, "Variant"),
			Sources: convertSources(v.Media.URL),
		})
	}
	for _, s := range doc.Subtitles {
		if s.URL == "" {
			continue
		}
		desc.Subtitles = append(desc.Subtitles, models.SubtitleTrack{
			Name: s.Text,
			URL:  s.URL,
			Lang: firstNonEmpty(s.Lang, models.DefaultSubtitleLang),
		})
	}
	return desc, nil
}

// SanitizeTitle NFC-normalizes title and keeps only characters that are
// safe in a file name.
func SanitizeTitle(title string) string {
	return strings.TrimSpace(unsafeTitle.ReplaceAllString(norm.NFC.String(title), ""))
}

func convertSources(in sourceList) []models.Source {
	var out []models.Source
	for _, s := range in {
		if s.File == "" {
			continue
		}
		out = append(out, models.Source{Label: s.Label, URL: s.File})
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
