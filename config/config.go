// Package config loads body tracker configuration from YAML files.
//
// Every option is optional: unset options fall back to their defaults
// through the Get accessors.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/milosgajdos/go-posetrack/kinematics"
	"github.com/milosgajdos/go-posetrack/oneeuro"
	"github.com/milosgajdos/go-posetrack/skeleton"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultMinDetection is the default detector confidence threshold
	DefaultMinDetection = 0.7
	// maxFileSize caps the size of loaded config files
	maxFileSize = 1 * 1024 * 1024
)

// Publisher configures the process spawned for every tracked body
type Publisher struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args,omitempty"`
}

// Config is body tracker configuration
type Config struct {
	// UseDepth selects depth sensor positions over face distance estimates
	UseDepth *bool `yaml:"use_depth,omitempty"`
	// SingleBody tracks one locally identified body
	SingleBody *bool `yaml:"single_body,omitempty"`
	// MinDetection is the detector confidence threshold
	MinDetection *float64 `yaml:"min_detection,omitempty"`
	// StickmanDebug emits per joint debug transforms
	StickmanDebug *bool `yaml:"stickman_debug,omitempty"`
	// ShoulderOffset is shoulder height above the hips [m]
	ShoulderOffset *float64 `yaml:"shoulder_offset,omitempty"`
	// PositionFilter tunes position filters
	PositionFilter *oneeuro.Params `yaml:"position_filter,omitempty"`
	// VelocityFilter tunes velocity filters
	VelocityFilter *oneeuro.Params `yaml:"velocity_filter,omitempty"`
	// Publisher configures per body publisher processes
	Publisher *Publisher `yaml:"publisher,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }

// Default returns Config with every option set to its default
func Default() *Config {
	pos, vel := oneeuro.PositionParams, oneeuro.VelocityParams

	return &Config{
		UseDepth:       ptrBool(false),
		SingleBody:     ptrBool(true),
		MinDetection:   ptrFloat64(DefaultMinDetection),
		StickmanDebug:  ptrBool(false),
		ShoulderOffset: ptrFloat64(skeleton.DefaultShoulderOffset),
		PositionFilter: &pos,
		VelocityFilter: &vel,
	}
}

// Load reads Config from YAML file at path and validates it.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .yaml or .yml extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, errors.Wrap(err, "stat config file")
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, errors.Wrap(err, "read config file")
	}

	return Parse(data)
}

// Parse decodes Config from YAML data and validates it.
// Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	c := &Config{}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	// empty document leaves every option unset
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "parse config")
	}

	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return c, nil
}

// Validate returns error if any set option is out of range
func (c *Config) Validate() error {
	if c.MinDetection != nil {
		if v := *c.MinDetection; !(v >= 0 && v <= 1) {
			return fmt.Errorf("min_detection must be between 0 and 1, got %v", v)
		}
	}

	if c.ShoulderOffset != nil {
		if v := *c.ShoulderOffset; !(v >= 0) {
			return fmt.Errorf("shoulder_offset must be non-negative, got %v", v)
		}
	}

	if c.PositionFilter != nil {
		if err := c.PositionFilter.Validate(); err != nil {
			return fmt.Errorf("position_filter: %w", err)
		}
	}

	if c.VelocityFilter != nil {
		if err := c.VelocityFilter.Validate(); err != nil {
			return fmt.Errorf("velocity_filter: %w", err)
		}
	}

	if c.Publisher != nil && c.Publisher.Command == "" {
		return errors.New("publisher command must be set")
	}

	return nil
}

// GetUseDepth returns use_depth or its default
func (c *Config) GetUseDepth() bool {
	if c.UseDepth == nil {
		return false
	}
	return *c.UseDepth
}

// GetSingleBody returns single_body or its default
func (c *Config) GetSingleBody() bool {
	if c.SingleBody == nil {
		return true
	}
	return *c.SingleBody
}

// GetMinDetection returns min_detection or its default
func (c *Config) GetMinDetection() float64 {
	if c.MinDetection == nil {
		return DefaultMinDetection
	}
	return *c.MinDetection
}

// GetStickmanDebug returns stickman_debug or its default
func (c *Config) GetStickmanDebug() bool {
	if c.StickmanDebug == nil {
		return false
	}
	return *c.StickmanDebug
}

// GetShoulderOffset returns shoulder_offset or its default
func (c *Config) GetShoulderOffset() float64 {
	if c.ShoulderOffset == nil {
		return skeleton.DefaultShoulderOffset
	}
	return *c.ShoulderOffset
}

// GetPositionFilter returns position_filter or its default
func (c *Config) GetPositionFilter() oneeuro.Params {
	if c.PositionFilter == nil {
		return oneeuro.PositionParams
	}
	return *c.PositionFilter
}

// GetVelocityFilter returns velocity_filter or its default
func (c *Config) GetVelocityFilter() oneeuro.Params {
	if c.VelocityFilter == nil {
		return oneeuro.VelocityParams
	}
	return *c.VelocityFilter
}

// Provisioner returns the per body resource provisioner.
// With no publisher configured nothing is provisioned.
func (c *Config) Provisioner() (kinematics.Provisioner, error) {
	if c.Publisher == nil {
		return kinematics.Nop{}, nil
	}

	p, err := kinematics.NewProcess(c.Publisher.Command, c.Publisher.Args...)
	if err != nil {
		return nil, err
	}

	return p, nil
}
