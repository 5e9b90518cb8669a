package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"dashgrab/internal/caption"
	"dashgrab/internal/dash"
	"dashgrab/internal/download"
	"dashgrab/internal/logger"
	"dashgrab/internal/models"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrMuxUnavailable is returned when a video option is acquired without a muxer.
var ErrMuxUnavailable = errors.New("muxing tool is not available")

// Muxer combines a video and an audio track into one file.
type Muxer interface {
	Mux(ctx context.Context, videoPath, audioPath, outputPath string) error
}

// Settings controls where and how a Session writes its output.
type Settings struct {
	OutputDir string
	// CanMux enables video options. It should reflect whether the muxing tool was found.
	CanMux bool
	// ParallelTracks downloads the video and audio of a pair concurrently.
	ParallelTracks bool
	// Report receives progress events. It is called from two goroutines
	// at once when ParallelTracks is set.
	Report download.Reporter
}

// Session resolves and acquires the renditions of one media asset.
type Session struct {
	Descriptor models.MediaDescriptor

	settings  Settings
	logger    logger.Logger
	fetcher   download.Fetcher
	manifests *dash.Client
	muxer     Muxer
}

// job is one acquisition. Its downloaders log with the job ID attached.
type job struct {
	*Session
	log       logger.Logger
	segmented *download.Segmented
	direct    *download.Direct
}

// New creates a session for desc. muxer may be nil when settings.CanMux is false.
func New(desc models.MediaDescriptor, fetcher download.Fetcher, muxer Muxer, settings Settings, log logger.Logger) *Session {
	if settings.OutputDir == "" {
		settings.OutputDir = "."
	}
	log = log.With("media", desc.ID)
	return &Session{
		Descriptor: desc,
		settings:   settings,
		logger:     log,
		fetcher:    fetcher,
		manifests:  dash.NewClient(fetcher, log),
		muxer:      muxer,
	}
}

// Options lists every acquirable rendition, in the order sources are listed:
// DASH renditions and direct files, then variant files, then subtitles.
// A manifest without usable representations contributes nothing.
func (s *Session) Options(ctx context.Context) ([]models.SourceOption, error) {
	var options []models.SourceOption

	for _, src := range s.Descriptor.Sources {
		if !src.IsDash() {
			options = append(options, models.DirectOption{URL: src.URL, Quality: src.Label})
			continue
		}

		manifest, err := s.manifests.FetchManifest(ctx, src.URL)
		if errors.Is(err, dash.ErrManifestEmpty) {
			s.logger.Warnf("Manifest %s has no usable representations, skipping", src.URL)
			continue
		}
		if err != nil {
			return nil, err
		}
		options = append(options, s.dashOptions(manifest)...)
	}

	for _, v := range s.Descriptor.Variants {
		for _, src := range v.Sources {
			if src.IsDash() {
				continue
			}
			options = append(options, models.DirectOption{URL: src.URL, Quality: src.Label, Suffix: fmt.Sprintf(" (%s)", v.Name)})
		}
	}

	for _, sub := range s.Descriptor.Subtitles {
		options = append(options, models.SubtitleOption{URL: sub.URL, Name: sub.Name, Lang: sub.Lang})
	}
	return options, nil
}

func (s *Session) dashOptions(m dash.Manifest) []models.SourceOption {
	var options []models.SourceOption
	audio, hasAudio := m.FirstAudio()

	switch {
	case !s.settings.CanMux:
		s.logger.Debugf("Muxing unavailable, hiding %d video representations of %s", len(m.Video), m.URL)
	case !hasAudio:
		s.logger.Debugf("Manifest %s has no audio to pair with video, hiding video representations", m.URL)
	default:
		for _, v := range m.Video {
			options = append(options, models.DashVideoOption{
				ManifestURL:     m.URL,
				BaseURL:         m.BaseURL,
				ManifestSeconds: m.Duration.Seconds(),
				Video:           v,
				Audio:           audio,
			})
		}
	}

	if hasAudio {
		options = append(options, models.DashAudioOption{
			ManifestURL:     m.URL,
			BaseURL:         m.BaseURL,
			ManifestSeconds: m.Duration.Seconds(),
			Audio:           audio,
		})
	}
	return options
}

// Acquire materializes opt under the output directory and returns the
// path of the produced file.
func (s *Session) Acquire(ctx context.Context, opt models.SourceOption) (string, error) {
	log := s.logger.With("job", uuid.NewString())
	j := &job{
		Session:   s,
		log:       log,
		segmented: download.NewSegmented(s.fetcher, log),
		direct:    download.NewDirect(s.fetcher, log),
	}
	log.Infof("Acquiring %s option %q of %q", opt.Kind(), opt.Label(), s.Descriptor.Title)

	var (
		path string
		err  error
	)
	switch o := opt.(type) {
	case models.DirectOption:
		path, err = j.acquireDirect(ctx, o)
	case models.DashAudioOption:
		path, err = j.acquireDashAudio(ctx, o)
	case models.DashVideoOption:
		path, err = j.acquireDashVideo(ctx, o)
	case models.SubtitleOption:
		path, err = j.acquireSubtitle(ctx, o)
	default:
		return "", fmt.Errorf("unsupported option type %T", opt)
	}
	if err != nil {
		log.Errorf("Acquisition failed: %v", err)
		return "", err
	}
	log.Infof("Acquired %s", path)
	return path, nil
}

func (s *Session) outputPath(name string) string {
	return filepath.Join(s.settings.OutputDir, name)
}

func (j *job) acquireDirect(ctx context.Context, o models.DirectOption) (string, error) {
	path := j.outputPath(j.Descriptor.Title + o.Suffix + j.Descriptor.DirectExtension())
	if err := j.direct.Download(ctx, o.URL, path, o.Label(), j.settings.Report); err != nil {
		return "", err
	}
	return path, nil
}

func (j *job) acquireDashAudio(ctx context.Context, o models.DashAudioOption) (string, error) {
	path := j.outputPath(j.Descriptor.Title + ".m4a")
	if err := j.segmented.Download(ctx, j.track("audio", o.BaseURL, o.Audio, path, o.ManifestSeconds)); err != nil {
		return "", err
	}
	return path, nil
}

func (j *job) acquireDashVideo(ctx context.Context, o models.DashVideoOption) (string, error) {
	if !j.settings.CanMux || j.muxer == nil {
		return "", ErrMuxUnavailable
	}

	videoTmp := j.outputPath(fmt.Sprintf("v_%s.tmp", j.Descriptor.ID))
	audioTmp := j.outputPath(fmt.Sprintf("a_%s.tmp", j.Descriptor.ID))
	output := j.outputPath(j.Descriptor.Title + ".mp4")

	video := j.track("video", o.BaseURL, o.Video, videoTmp, o.ManifestSeconds)
	audio := j.track("audio", o.BaseURL, o.Audio, audioTmp, o.ManifestSeconds)

	if err := j.downloadPair(ctx, video, audio); err != nil {
		// A track that finished is useless without its sibling.
		for _, p := range []string{videoTmp, audioTmp} {
			if rmErr := os.Remove(p); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				j.log.Warnf("Failed to remove temporary track %s: %v", p, rmErr)
			}
		}
		return "", err
	}

	if err := j.muxer.Mux(ctx, videoTmp, audioTmp, output); err != nil {
		j.log.Warnf("Keeping %s and %s for inspection", videoTmp, audioTmp)
		return "", err
	}
	return output, nil
}

func (j *job) downloadPair(ctx context.Context, video, audio download.TrackRequest) error {
	if !j.settings.ParallelTracks {
		if err := j.segmented.Download(ctx, video); err != nil {
			return err
		}
		return j.segmented.Download(ctx, audio)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, req := range []download.TrackRequest{video, audio} {
		g.Go(func() error {
			return j.segmented.Download(gctx, req)
		})
	}
	return g.Wait()
}

func (j *job) acquireSubtitle(ctx context.Context, o models.SubtitleOption) (string, error) {
	vttPath := j.outputPath(fmt.Sprintf("%s.%s.vtt", j.Descriptor.Title, o.Lang))
	if err := j.direct.Download(ctx, o.URL, vttPath, o.Label(), j.settings.Report); err != nil {
		return "", err
	}

	srtPath, err := caption.ConvertFile(vttPath)
	if errors.Is(err, caption.ErrNoCues) {
		j.log.Warnf("No cues found in %s, keeping the WebVTT document", vttPath)
		return vttPath, nil
	}
	if err != nil {
		return "", err
	}
	return srtPath, nil
}

func (j *job) track(name, baseURL string, rep models.Representation, path string, manifestSeconds float64) download.TrackRequest {
	return download.TrackRequest{
		Name:            name,
		BaseURL:         baseURL,
		Representation:  rep,
		DurationSeconds: j.trackDuration(name, rep, manifestSeconds),
		Path:            path,
		Report:          j.settings.Report,
	}
}

// trackDuration picks the duration that sizes a segment plan. The
// descriptor's value wins; the manifest's fills in when the descriptor
// has none.
func (j *job) trackDuration(name string, rep models.Representation, manifestSeconds float64) float64 {
	described := j.Descriptor.DurationSeconds
	if described <= 0 {
		if manifestSeconds > 0 {
			j.log.Infof("Descriptor has no duration, sizing %s from the manifest (%.3fs)", name, manifestSeconds)
		}
		return max(manifestSeconds, 0)
	}

	if seg := rep.Template.SegmentSeconds(); manifestSeconds > 0 && seg > 0 && math.Abs(described-manifestSeconds) > seg {
		j.log.Warnf("Descriptor duration %.3fs and manifest duration %.3fs of %s differ by more than one segment", described, manifestSeconds, name)
	}
	return described
}
