package caption

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/google/renameio/v2"
)

// SRTPath returns the subtitle path that ConvertFile writes for vttPath.
func SRTPath(vttPath string) string {
	return strings.TrimSuffix(vttPath, ".vtt") + ".srt"
}

// ConvertFile converts the WebVTT document at vttPath into an SRT sibling
// and removes the source. When no cue is found it returns ErrNoCues and the
// source is left untouched.
func ConvertFile(vttPath string) (string, error) {
	f, err := os.Open(vttPath)
	if err != nil {
		return "", fmt.Errorf("open captions: %w", err)
	}
	cues, err := Parse(f)
	f.Close()
	if err != nil {
		return "", err
	}
	if len(cues) == 0 {
		return "", fmt.Errorf("%w in %s", ErrNoCues, vttPath)
	}

	var buf bytes.Buffer
	if err := Write(&buf, cues); err != nil {
		return "", err
	}

	srtPath := SRTPath(vttPath)
	if err := renameio.WriteFile(srtPath, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write subtitles: %w", err)
	}
	if err := os.Remove(vttPath); err != nil && !os.IsNotExist(err) {
		return srtPath, fmt.Errorf("remove caption source: %w", err)
	}
	return srtPath, nil
}
