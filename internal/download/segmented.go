package download

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"dashgrab/internal/dash"
	"dashgrab/internal/fetch"
	"dashgrab/internal/logger"
	"dashgrab/internal/models"
)

// Fetcher is the subset of fetch.Fetcher used by the downloaders.
type Fetcher interface {
	Fetch(ctx context.Context, url string, observe fetch.Observer) ([]byte, error)
	FetchTo(ctx context.Context, url string, sink fetch.Sink, observe fetch.Observer) error
}

// SegmentError identifies the segment whose retry budget ran out.
type SegmentError struct {
	Segment models.Segment
	Err     error
}

func (e *SegmentError) Error() string {
	if e.Segment.IsInit {
		return fmt.Sprintf("init segment of %s (%s): %v", e.Segment.RepID, e.Segment.URL, e.Err)
	}
	return fmt.Sprintf("segment %d of %s (%s): %v", e.Segment.Index, e.Segment.RepID, e.Segment.URL, e.Err)
}

func (e *SegmentError) Unwrap() error {
	return e.Err
}

// TrackRequest describes one segmented track to reconstruct.
type TrackRequest struct {
	// Name labels progress events and log lines.
	Name            string
	BaseURL         string
	Representation  models.Representation
	DurationSeconds float64
	Path            string
	Report          Reporter
}

// Segmented downloads a segmented track into a single file.
type Segmented struct {
	fetcher Fetcher
	logger  logger.Logger
}

// NewSegmented creates a Segmented downloader.
func NewSegmented(fetcher Fetcher, log logger.Logger) *Segmented {
	return &Segmented{fetcher: fetcher, logger: log}
}

// Download fetches the initialization segment and then every media segment
// in index order, appending each one to the target once its body has fully
// arrived. Segment i+1 is never requested before segment i is written.
// On failure nothing is left at req.Path by this call.
func (s *Segmented) Download(ctx context.Context, req TrackRequest) error {
	plan, err := dash.PlanFor(req.Representation, req.BaseURL, req.DurationSeconds)
	if err != nil {
		return fmt.Errorf("plan %s: %w", req.Name, err)
	}

	target, err := OpenTarget(req.Path)
	if err != nil {
		return err
	}
	defer discard(target, s.logger)

	s.logger.Infof("Downloading %s: init + %d segments of %s", req.Name, plan.TotalSegments, req.Representation.ID)

	initSeg := plan.Init()
	if err := s.appendSegment(ctx, target, initSeg, req); err != nil {
		return err
	}
	req.Report.report(Event{Phase: PhaseInit, Name: req.Name, Bytes: target.Written()})

	for i := 0; i < plan.TotalSegments; i++ {
		seg := plan.Segment(i)
		if err := s.appendSegment(ctx, target, seg, req); err != nil {
			if i > 0 && i == plan.TotalSegments-1 && isNotFound(err) {
				s.logger.Warnf("Last segment %d of %s is missing, the track ends one segment early", i, req.Name)
				break
			}
			return err
		}
		req.Report.report(Event{
			Phase:    PhaseSegment,
			Name:     req.Name,
			Fraction: float64(i+1) / float64(plan.TotalSegments),
			Bytes:    target.Written(),
		})
	}

	if err := target.Commit(); err != nil {
		return err
	}
	req.Report.report(Event{Phase: PhaseDone, Name: req.Name, Fraction: 1, Bytes: target.Written()})
	s.logger.Infof("Finished %s: %d bytes written to %s", req.Name, target.Written(), req.Path)
	return nil
}

func (s *Segmented) appendSegment(ctx context.Context, target *Target, seg models.Segment, req TrackRequest) error {
	data, err := s.fetcher.Fetch(ctx, seg.URL, req.Report.retries(req.Name))
	if err != nil {
		return &SegmentError{Segment: seg, Err: err}
	}
	if _, err := target.Write(data); err != nil {
		return fmt.Errorf("append segment %s to %s: %w", seg.ID, target.Path(), err)
	}
	return nil
}

// discard drops an uncommitted target. A pending file that could not be
// removed is logged so it can be cleaned up by hand.
func discard(target *Target, log logger.Logger) {
	if err := target.Discard(); err != nil {
		log.Warnf("Failed to remove pending file for %s: %v", target.Path(), err)
	}
}

// isNotFound reports whether err is an exhausted budget whose last attempt got a 404.
func isNotFound(err error) bool {
	var statusErr *fetch.StatusError
	return errors.Is(err, fetch.ErrExhausted) &&
		errors.As(err, &statusErr) &&
		statusErr.StatusCode == http.StatusNotFound
}
