package models

import (
	"fmt"
	"strings"
)

// qualityNames maps common frame sizes to display names.
var qualityNames = []struct {
	resolution string
	name       string
}{
	{"7680x4320", "8K Ultra HD"},
	{"3840x2160", "4K Ultra HD (2160p)"},
	{"2560x1440", "2K / Quad HD (1440p)"},
	{"1920x1080", "Full HD (1080p)"},
	{"1440x1080", "Full HD 4:3 (1080p)"},
	{"1280x720", "HD (720p)"},
	{"960x720", "HD 4:3 (720p)"},
	{"1024x576", "High Definition (576p)"},
	{"768x576", "Classic TV (576p 4:3)"},
	{"854x480", "DVD (480p)"},
	{"768x432", "Medium (432p)"},
	{"640x360", "Standard (360p)"},
	{"512x288", "Low (288p)"},
	{"384x216", "Mobile (216p)"},
}

// QualityLabel names a rendition from its frame size or, failing that,
// from a source label such as "720p".
func QualityLabel(width, height int, label string) string {
	if width > 0 && height > 0 {
		res := fmt.Sprintf("%dx%d", width, height)
		for _, q := range qualityNames {
			if q.resolution == res {
				return q.name
			}
		}
		return fmt.Sprintf("Custom resolution (%s)", res)
	}

	if label = strings.TrimSpace(label); label != "" {
		suffix := strings.TrimSpace(strings.ReplaceAll(strings.ToLower(label), "p", ""))
		for _, q := range qualityNames {
			if strings.HasSuffix(q.resolution, "x"+suffix) {
				return q.name
			}
		}
		return "Quality " + label
	}
	return "Unknown quality"
}
