package dash

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"dashgrab/internal/models"
)

// identifier matches a SegmentTemplate identifier such as $Number$,
// $Number%05d$, $RepresentationID$ or the $$ escape.
var identifier = regexp.MustCompile(`\$(RepresentationID|Number|Bandwidth|Time|)(?:%0(\d+)d)?\$`)

// Plan is the ordered list of requests that reconstructs one track:
// the initialization segment followed by media segments 0..TotalSegments-1.
type Plan struct {
	InitURL       string
	TotalSegments int

	base      *url.URL
	template  models.SegmentTemplate
	repID     string
	bandwidth int
}

// NewPlan computes the segment plan for a template. It performs no I/O.
// TotalSegments is ceil(totalDurationSeconds / segment length), so a final
// partial segment is always included; a zero duration plans only the
// initialization segment.
func NewPlan(tmpl models.SegmentTemplate, baseURL string, totalDurationSeconds float64) (*Plan, error) {
	return newPlan(tmpl, "", 0, baseURL, totalDurationSeconds)
}

// PlanFor computes the plan for a representation, substituting its ID and
// bandwidth into the template.
func PlanFor(rep models.Representation, baseURL string, totalDurationSeconds float64) (*Plan, error) {
	return newPlan(rep.Template, rep.ID, rep.Bandwidth, baseURL, totalDurationSeconds)
}

func newPlan(tmpl models.SegmentTemplate, repID string, bandwidth int, baseURL string, totalDurationSeconds float64) (*Plan, error) {
	if tmpl.Timescale <= 0 {
		return nil, fmt.Errorf("segment template timescale must be positive, got %d", tmpl.Timescale)
	}
	if tmpl.Duration <= 0 {
		return nil, fmt.Errorf("segment template duration must be positive, got %d", tmpl.Duration)
	}
	if tmpl.Media == "" {
		return nil, errors.New("segment template has no media pattern")
	}
	if totalDurationSeconds < 0 || math.IsNaN(totalDurationSeconds) || math.IsInf(totalDurationSeconds, 0) {
		return nil, fmt.Errorf("invalid total duration %v", totalDurationSeconds)
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL '%s': %w", baseURL, err)
	}

	p := &Plan{
		base:      base,
		template:  tmpl,
		repID:     repID,
		bandwidth: bandwidth,
	}

	p.TotalSegments = int(math.Ceil(totalDurationSeconds / tmpl.SegmentSeconds()))

	initPath, err := p.expand(tmpl.Initialization, tmpl.StartNumber)
	if err != nil {
		return nil, fmt.Errorf("initialization pattern: %w", err)
	}
	initURL, err := resolveURL(base, initPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve init path: %w", err)
	}
	p.InitURL = initURL.String()

	// Validates the media pattern once so SegmentURL cannot fail.
	if _, err := p.segmentURL(0); err != nil {
		return nil, err
	}
	return p, nil
}

// SegmentURL returns the URL of media segment i, 0 <= i < TotalSegments.
func (p *Plan) SegmentURL(i int) string {
	u, err := p.segmentURL(i)
	if err != nil {
		// Unreachable: the pattern was validated by newPlan and only the
		// decimal segment number changes between calls.
		panic(err)
	}
	return u
}

// Init returns the initialization segment.
func (p *Plan) Init() models.Segment {
	return models.Segment{URL: p.InitURL, ID: "init", Index: -1, RepID: p.repID, IsInit: true}
}

// Segment returns media segment i.
func (p *Plan) Segment(i int) models.Segment {
	return models.Segment{URL: p.SegmentURL(i), ID: strconv.Itoa(i), Index: i, RepID: p.repID}
}

func (p *Plan) segmentURL(i int) (string, error) {
	mediaPath, err := p.expand(p.template.Media, p.template.StartNumber+i)
	if err != nil {
		return "", fmt.Errorf("media pattern: %w", err)
	}
	u, err := resolveURL(p.base, mediaPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve media path: %w", err)
	}
	return u.String(), nil
}

func (p *Plan) expand(pattern string, number int) (string, error) {
	var expandErr error
	out := identifier.ReplaceAllStringFunc(pattern, func(match string) string {
		sub := identifier.FindStringSubmatch(match)
		name, width := sub[1], sub[2]

		var value int
		switch name {
		case "":
			if width != "" {
				expandErr = fmt.Errorf("malformed identifier %q", match)
				return match
			}
			return "$"
		case "RepresentationID":
			if width != "" {
				expandErr = fmt.Errorf("identifier %q does not take a format", match)
				return match
			}
			return p.repID
		case "Number":
			value = number
		case "Bandwidth":
			value = p.bandwidth
		default:
			expandErr = fmt.Errorf("unsupported identifier %q", match)
			return match
		}

		if width == "" {
			return strconv.Itoa(value)
		}
		w, err := strconv.Atoi(width)
		if err != nil {
			expandErr = fmt.Errorf("malformed width in %q: %w", match, err)
			return match
		}
		return fmt.Sprintf("%0*d", w, value)
	})
	if expandErr != nil {
		return "", expandErr
	}
	return out, nil
}

// BaseURL returns manifestURL with its final path segment, query and fragment removed.
func BaseURL(manifestURL string) (string, error) {
	u, err := url.Parse(manifestURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse manifest URL '%s': %w", manifestURL, err)
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.RawPath = ""
	if idx := strings.LastIndex(u.Path, "/"); idx >= 0 {
		u.Path = u.Path[:idx+1]
	} else {
		u.Path = "/"
	}
	return u.String(), nil
}

// resolveURL resolves a path against a base URL, handling potential errors.
func resolveURL(base *url.URL, path string) (*url.URL, error) {
	resolvedPath, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse path '%s': %w", path, err)
	}
	return base.ResolveReference(resolvedPath), nil
}
