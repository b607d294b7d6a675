package track

import (
	"log/slog"

	"github.com/milosgajdos/go-posetrack/config"
	"github.com/milosgajdos/go-posetrack/kinematics"
	"github.com/milosgajdos/go-posetrack/oneeuro"
	"github.com/milosgajdos/go-posetrack/pnp"
	"github.com/milosgajdos/go-posetrack/skeleton"
)

// Options configure Track
type Options struct {
	// UseDepth takes positions from the depth sensor instead of face distance
	UseDepth bool
	// SingleBody reports the region of interest of the tracked body
	SingleBody bool
	// StickmanDebug emits per joint debug transforms
	StickmanDebug bool
	// ShoulderOffset is shoulder height above the hips [m]
	ShoulderOffset float64
	// Position tunes position filters
	Position oneeuro.Params
	// Velocity tunes velocity filters
	Velocity oneeuro.Params
	// PnP tunes face pose estimation; nil uses defaults
	PnP *pnp.Settings
	// Solver solves body joint angles; nil skips joint states
	Solver kinematics.Solver
	// Logger logs track diagnostics
	Logger *slog.Logger
}

// Option configures Options
type Option func(*Options)

// DefaultOptions returns default track options
func DefaultOptions() Options {
	return Options{
		SingleBody:     true,
		ShoulderOffset: skeleton.DefaultShoulderOffset,
		Position:       oneeuro.PositionParams,
		Velocity:       oneeuro.VelocityParams,
	}
}

// WithConfig applies tracker configuration c
func WithConfig(c *config.Config) Option {
	return func(o *Options) {
		o.UseDepth = c.GetUseDepth()
		o.SingleBody = c.GetSingleBody()
		o.StickmanDebug = c.GetStickmanDebug()
		o.ShoulderOffset = c.GetShoulderOffset()
		o.Position = c.GetPositionFilter()
		o.Velocity = c.GetVelocityFilter()
	}
}

// WithDepth selects depth sensor positions
func WithDepth(use bool) Option {
	return func(o *Options) {
		o.UseDepth = use
	}
}

// WithSingleBody toggles single body mode
func WithSingleBody(single bool) Option {
	return func(o *Options) {
		o.SingleBody = single
	}
}

// WithStickmanDebug toggles per joint debug transforms
func WithStickmanDebug(debug bool) Option {
	return func(o *Options) {
		o.StickmanDebug = debug
	}
}

// WithShoulderOffset sets shoulder height above the hips [m]
func WithShoulderOffset(offset float64) Option {
	return func(o *Options) {
		o.ShoulderOffset = offset
	}
}

// WithFilters sets position and velocity filter parameters
func WithFilters(position, velocity oneeuro.Params) Option {
	return func(o *Options) {
		o.Position = position
		o.Velocity = velocity
	}
}

// WithPnP sets face pose estimation settings
func WithPnP(s *pnp.Settings) Option {
	return func(o *Options) {
		o.PnP = s
	}
}

// WithSolver sets joint angle solver
func WithSolver(s kinematics.Solver) Option {
	return func(o *Options) {
		o.Solver = s
	}
}

// WithLogger sets logger
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}
