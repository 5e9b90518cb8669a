// Package caption converts WebVTT caption documents into SRT subtitles.
//
// Only the subset of WebVTT served by the catalog is understood: cue timing
// lines of the form "start --> end" followed by up to three text lines.
// Timestamps are accepted as MM:SS.mmm, H:MM:SS.mmm or HH:MM:SS.mmm, with
// either '.' or ',' before the milliseconds.
package caption

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// ErrNoCues is returned when a document contains no convertible cue.
var ErrNoCues = errors.New("no caption cues found")

const (
	arrow       = " --> "
	maxCueLines = 3
)

var (
	timestamp = regexp.MustCompile(`(\d{0,2}:?\d{2}:\d{2}[.,]\d{3})`)
	markup    = regexp.MustCompile(`<[^>]+>`)
	digits    = regexp.MustCompile(`^[0-9]+$`)
)

// Cue is one subtitle entry. Start and End use the SRT form HH:MM:SS,mmm.
type Cue struct {
	Index int
	Start string
	End   string
	Lines []string
}

// NormalizeTimestamp converts a WebVTT timestamp to HH:MM:SS,mmm.
func NormalizeTimestamp(ts string) string {
	ts = strings.Replace(ts, ".", ",", 1)
	switch strings.Count(ts, ":") {
	case 1:
		return "00:" + ts
	case 2:
		if strings.Index(ts, ":") == 1 {
			return "0" + ts
		}
	}
	return ts
}

// Parse extracts the cues of a WebVTT document, numbered from 1 in order.
func Parse(r io.Reader) ([]Cue, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read captions: %w", err)
	}

	var cues []Cue
	for i, line := range lines {
		if !strings.Contains(line, arrow) {
			continue
		}
		stamps := timestamp.FindAllString(line, -1)
		if len(stamps) < 2 {
			continue
		}

		text := cueText(lines[i+1 : min(i+1+maxCueLines, len(lines))])
		if len(text) == 0 {
			continue
		}
		cues = append(cues, Cue{
			Index: len(cues) + 1,
			Start: NormalizeTimestamp(stamps[0]),
			End:   NormalizeTimestamp(stamps[1]),
			Lines: text,
		})
	}
	return cues, nil
}

// cueText collects the text following a timing line. It stops at a blank
// line, another timing line or a region declaration.
func cueText(window []string) []string {
	var text []string
	for _, line := range window {
		if line == "" || strings.Contains(line, arrow) || strings.HasPrefix(line, "Region:") {
			break
		}
		clean := strings.TrimSpace(markup.ReplaceAllString(line, ""))
		if clean == "" || digits.MatchString(clean) {
			continue
		}
		text = append(text, clean)
	}
	return text
}

// Write serializes cues in SRT form.
func Write(w io.Writer, cues []Cue) error {
	bw := bufio.NewWriter(w)
	for _, c := range cues {
		fmt.Fprintf(bw, "%d\n%s --> %s\n%s\n\n", c.Index, c.Start, c.End, strings.Join(c.Lines, "\n"))
	}
	return bw.Flush()
}
