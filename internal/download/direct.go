package download

import (
	"context"
	"fmt"

	"dashgrab/internal/logger"
)

// Direct streams a single-URL file to disk.
type Direct struct {
	fetcher Fetcher
	logger  logger.Logger
}

// NewDirect creates a Direct downloader.
func NewDirect(fetcher Fetcher, log logger.Logger) *Direct {
	return &Direct{fetcher: fetcher, logger: log}
}

// Download streams url into path. A retry truncates the pending file and
// restarts from byte 0. On failure nothing is left at path by this call.
func (d *Direct) Download(ctx context.Context, url, path, name string, report Reporter) error {
	target, err := OpenTarget(path)
	if err != nil {
		return err
	}
	defer discard(target, d.logger)

	d.logger.Infof("Downloading %s from %s", name, url)

	sink := &progressSink{target: target, name: name, report: report, contentLength: -1}
	if err := d.fetcher.FetchTo(ctx, url, sink, report.retries(name)); err != nil {
		return fmt.Errorf("download %s: %w", name, err)
	}

	if err := target.Commit(); err != nil {
		return err
	}
	report.report(Event{Phase: PhaseDone, Name: name, Fraction: 1, Bytes: target.Written()})
	d.logger.Infof("Finished %s: %d bytes written to %s", name, target.Written(), path)
	return nil
}

// progressSink writes into a Target and reports transfer progress per chunk.
type progressSink struct {
	target        *Target
	name          string
	report        Reporter
	contentLength int64
}

func (s *progressSink) Reset(contentLength int64) error {
	s.contentLength = contentLength
	return s.target.Truncate()
}

func (s *progressSink) Write(p []byte) (int, error) {
	n, err := s.target.Write(p)
	if n > 0 {
		written := s.target.Written()
		e := Event{Phase: PhaseTransfer, Name: s.name, Bytes: written}
		if s.contentLength > 0 {
			e.Fraction = min(float64(written)/float64(s.contentLength), 1)
		} else {
			e.Indeterminate = true
		}
		s.report.report(e)
	}
	return n, err
}
