package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/maauso/clipmerge/internal/media"
	"github.com/maauso/clipmerge/internal/merge"
)

// Preset holds saved run choices. Empty fields leave the defaults untouched.
type Preset struct {
	Policy     string `yaml:"policy"`
	Aspect     string `yaml:"aspect"`
	Background string `yaml:"background"`
	GroupSize  *int   `yaml:"group_size,omitempty"`
	Assembly   string `yaml:"assembly"`
	Audio      string `yaml:"audio"`
	OutputDir  string `yaml:"output_dir"`
	PushToS3   *bool  `yaml:"push_to_s3,omitempty"`
}

// LoadPreset reads a YAML preset. Unknown keys are rejected so that typos
// do not silently fall back to defaults.
func LoadPreset(path string) (Preset, error) {
	contents, err := os.ReadFile(path) // #nosec G304 - path is provided by the operator
	if err != nil {
		return Preset{}, fmt.Errorf("read preset: %w", err)
	}

	var p Preset
	dec := yaml.NewDecoder(bytes.NewReader(contents))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return Preset{}, fmt.Errorf("unmarshal preset: %w", err)
	}
	return p, nil
}

// Apply overlays the preset onto rc.
func (p Preset) Apply(rc *merge.RunConfig) error {
	if p.Policy != "" {
		policy, err := merge.ParsePolicy(p.Policy)
		if err != nil {
			return err
		}
		rc.Policy = policy
	}
	if p.Aspect != "" {
		aspect, err := merge.ParseAspect(p.Aspect)
		if err != nil {
			return err
		}
		rc.Aspect = aspect
	}
	if p.Background != "" {
		bg, err := merge.ParseBackgroundStyle(p.Background)
		if err != nil {
			return err
		}
		rc.Background = bg
	}
	if p.GroupSize != nil {
		rc.GroupSize = *p.GroupSize
	}
	if p.Assembly != "" {
		rc.Assembly = media.ConcatMode(p.Assembly)
	}
	if p.Audio != "" {
		rc.Audio = media.AudioMode(p.Audio)
	}
	if p.OutputDir != "" {
		rc.OutputDir = p.OutputDir
	}
	if p.PushToS3 != nil {
		rc.Publish = *p.PushToS3
	}
	return nil
}

// RunConfig returns the run configuration implied by the environment for
// outputs written to outputDir.
func (c *Config) RunConfig(outputDir string) merge.RunConfig {
	rc := merge.DefaultRunConfig(outputDir)
	rc.FrameRate = c.FrameRate
	rc.PixelFormat = c.PixelFormat
	rc.AspectTolerance = c.AspectTolerance
	rc.BlurSigma = c.BlurSigma
	rc.DarkenOpacity = c.DarkenOpacity
	rc.Timeouts = merge.Timeouts{
		Probe:        c.ProbeTimeout,
		Normalize:    c.NormalizeTimeout,
		ConcatBase:   c.ConcatBaseTimeout,
		ConcatFactor: c.ConcatTimeoutFactor,
	}
	return rc
}

// EncoderSettings returns the encoder settings for the ffmpeg engine.
func (c *Config) EncoderSettings() media.EncoderSettings {
	return media.EncoderSettings{
		VideoCodec:   c.VideoCodec,
		Preset:       c.VideoPreset,
		CRF:          c.VideoCRF,
		AudioCodec:   c.AudioCodec,
		AudioBitrate: c.AudioBitrate,
	}
}
