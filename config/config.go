// Package config holds the tunables of a physics world.
package config

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/jinzhu/copier"
	"gopkg.in/yaml.v3"
)

var ErrInvalidSettings = errors.New("invalid physics settings")

const (
	DefaultSolverIterations = 30
	DefaultFrameRate        = 120
	DefaultMaxIterations    = 4
	DefaultWorkers          = 1
	DefaultDamping          = 0.4
)

// Settings are read at the start of each step and must not change while a
// step is running.
type Settings struct {
	RigidSolverIterations int  `yaml:"rigidSolverIterations"`
	FixedFrameRate        bool `yaml:"fixedFrameRate"`
	FrameRate             int  `yaml:"frameRate"`
	// MaxPhysicsIterationsPerFrame bounds the catch-up steps of a slow frame.
	MaxPhysicsIterationsPerFrame int `yaml:"maxPhysicsIterationsPerFrame"`

	// Lane-batched code paths
	SimdBroadPhase       bool `yaml:"simdBroadPhase"`
	SimdConstraintSolver bool `yaml:"simdConstraintSolver"`

	GlobalTimeScale float64    `yaml:"globalTimeScale"`
	Gravity         mgl64.Vec3 `yaml:"gravity,flow"`
	Workers         int        `yaml:"workers"`
	// ArenaBudget caps the step scratch memory in bytes, 0 for no cap.
	ArenaBudget int `yaml:"arenaBudget"`

	LinearDamping  float64 `yaml:"linearDamping"`
	AngularDamping float64 `yaml:"angularDamping"`
}

func Default() Settings {
	return Settings{
		RigidSolverIterations:        DefaultSolverIterations,
		FixedFrameRate:               true,
		FrameRate:                    DefaultFrameRate,
		MaxPhysicsIterationsPerFrame: DefaultMaxIterations,
		SimdBroadPhase:               true,
		SimdConstraintSolver:         true,
		GlobalTimeScale:              1,
		Gravity:                      mgl64.Vec3{0, -9.81, 0},
		Workers:                      DefaultWorkers,
		LinearDamping:                DefaultDamping,
		AngularDamping:               DefaultDamping,
	}
}

// Merge returns base with every non-zero field of override applied on top.
// A false boolean in override cannot switch a default off; Load can.
func Merge(base, override Settings) (Settings, error) {
	if err := copier.CopyWithOption(&base, &override, copier.Option{IgnoreEmpty: true}); err != nil {
		return base, fmt.Errorf("merge settings: %w", err)
	}
	return base, nil
}

// Load decodes YAML settings over the defaults. Keys missing from r keep their
// default value.
func Load(r io.Reader) (Settings, error) {
	s := Default()
	if err := yaml.NewDecoder(r).Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return s, fmt.Errorf("decode settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

// FixedStep returns the duration of one physics step.
func (s Settings) FixedStep() float64 {
	return 1 / float64(s.FrameRate)
}

func (s Settings) Validate() error {
	switch {
	case s.FrameRate <= 0:
		return fmt.Errorf("%w: frame rate %d", ErrInvalidSettings, s.FrameRate)
	case s.RigidSolverIterations <= 0:
		return fmt.Errorf("%w: %d solver iterations", ErrInvalidSettings, s.RigidSolverIterations)
	case s.MaxPhysicsIterationsPerFrame <= 0:
		return fmt.Errorf("%w: %d physics iterations per frame", ErrInvalidSettings, s.MaxPhysicsIterationsPerFrame)
	case s.ArenaBudget < 0:
		return fmt.Errorf("%w: arena budget %d", ErrInvalidSettings, s.ArenaBudget)
	case s.GlobalTimeScale < 0:
		return fmt.Errorf("%w: time scale %v", ErrInvalidSettings, s.GlobalTimeScale)
	}
	return nil
}
