package main

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"dashgrab/internal/catalog"
	"dashgrab/internal/config"
	"dashgrab/internal/deps"
	"dashgrab/internal/download"
	"dashgrab/internal/fetch"
	"dashgrab/internal/logger"
	"dashgrab/internal/models"
	"dashgrab/internal/mux"
	"dashgrab/internal/session"
)

type globalFlags struct {
	configPath  string
	outputDir   string
	logLevel    string
	parallel    bool
	parallelSet bool
}

type commandContext struct {
	flags *globalFlags

	configOnce sync.Once
	config     config.Config
	configErr  error
	log        logger.Logger
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

// ensureConfig loads the configuration file once and applies flag overrides.
func (c *commandContext) ensureConfig() (config.Config, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Load(strings.TrimSpace(c.flags.configPath))
		if err != nil {
			c.configErr = err
			return
		}
		if dir := strings.TrimSpace(c.flags.outputDir); dir != "" {
			cfg.OutputDir = dir
		}
		if level := strings.TrimSpace(c.flags.logLevel); level != "" {
			cfg.LogLevel = strings.ToLower(level)
		}
		if c.flags.parallelSet {
			cfg.Mux.ParallelTracks = c.flags.parallel
		}
		if err := cfg.Validate(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.log = logger.NewLogger(cfg.LogLevel)
	})
	return c.config, c.configErr
}

func (c *commandContext) logger() logger.Logger {
	if c.log == nil {
		return logger.Nop()
	}
	return c.log
}

func (c *commandContext) fetcher() *fetch.Fetcher {
	return fetch.New(c.logger().With("component", "fetch"), fetch.Options{
		Policy: fetch.Policy{
			Attempts: c.config.Network.Attempts,
			Delay:    c.config.Network.RetryDelay,
			Timeout:  c.config.Network.Timeout,
		},
		UserAgent:         c.config.UserAgent,
		RequestsPerSecond: c.config.Network.RequestsPerSecond,
	})
}

func (c *commandContext) tools() []deps.Tool {
	return []deps.Tool{deps.FFmpeg(c.config.Mux.FFmpegPath)}
}

func (c *commandContext) newSession(desc models.MediaDescriptor, report download.Reporter) *session.Session {
	ffmpeg := deps.Resolve(deps.FFmpeg(c.config.Mux.FFmpegPath))
	canMux := ffmpeg.Available
	if !canMux {
		c.logger().Warnf("%s, DASH video downloads are disabled", ffmpeg.Detail)
	}

	var muxer session.Muxer
	if canMux {
		muxer = mux.New(ffmpeg.Path, c.logger())
	}

	return session.New(desc, c.fetcher(), muxer, session.Settings{
		OutputDir:      c.config.OutputDir,
		CanMux:         canMux,
		ParallelTracks: c.config.Mux.ParallelTracks,
		Report:         report,
	}, c.logger())
}

type descriptorFlags struct {
	id   string
	kind string
}

func (f *descriptorFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.id, "id", "", "Media ID when the descriptor has none (defaults to the file name)")
	cmd.Flags().StringVar(&f.kind, "kind", "", "Media kind when the descriptor has none (audio or video)")
}

func (f *descriptorFlags) load(path string) (models.MediaDescriptor, error) {
	id := strings.TrimSpace(f.id)
	if id == "" {
		id = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return catalog.Load(path, catalog.Hint{ID: id, Kind: models.MediaKind(strings.ToLower(strings.TrimSpace(f.kind)))})
}
