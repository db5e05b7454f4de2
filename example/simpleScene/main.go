package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/akmonengine/impulse"
	"github.com/akmonengine/impulse/actor"
	"github.com/akmonengine/impulse/config"
	"github.com/akmonengine/impulse/geometry"
	"github.com/go-gl/mathgl/mgl64"
)

// loadSettings reads the YAML file at path, or the defaults when path is
// empty, then applies the non-zero fields of overrides.
func loadSettings(path string, overrides config.Settings) (config.Settings, error) {
	settings := config.Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return config.Settings{}, err
		}
		defer f.Close()

		if settings, err = config.Load(f); err != nil {
			return config.Settings{}, err
		}
	}

	settings, err := config.Merge(settings, overrides)
	if err != nil {
		return config.Settings{}, err
	}
	return settings, settings.Validate()
}

func createBox(position, halfExtents mgl64.Vec3, rotation mgl64.Quat) *actor.Body {
	box := geometry.AABB{Min: halfExtents.Mul(-1), Max: halfExtents}
	return actor.NewDynamicBody(actor.NewTransformAt(position, rotation), actor.NewCollider(box, actor.DefaultMaterial()))
}

func createLimb(from, to mgl64.Vec3, radius float64) *actor.Body {
	center := from.Add(to).Mul(0.5)
	capsule := geometry.Capsule{PositionA: from.Sub(center), PositionB: to.Sub(center), Radius: radius}
	return actor.NewDynamicBody(actor.NewTransformAt(center, mgl64.QuatIdent()), actor.NewCollider(capsule, actor.DefaultMaterial()))
}

// addRagdoll drops a torso with a head and one arm: cone-twist joints at the
// neck and the shoulder, a limited hinge at the elbow.
func addRagdoll(world *impulse.World, base mgl64.Vec3) ([]*actor.Body, error) {
	torso := createBox(base, mgl64.Vec3{0.3, 0.5, 0.15}, mgl64.QuatIdent())
	head := actor.NewDynamicBody(
		actor.NewTransformAt(base.Add(mgl64.Vec3{0, 0.8, 0}), mgl64.QuatIdent()),
		actor.NewCollider(geometry.Sphere{Radius: 0.25}, actor.DefaultMaterial()),
	)
	shoulder := base.Add(mgl64.Vec3{0.35, 0.4, 0})
	elbow := shoulder.Add(mgl64.Vec3{0.6, 0, 0})
	upperArm := createLimb(shoulder.Add(mgl64.Vec3{0.1, 0, 0}), elbow, 0.08)
	forearm := createLimb(elbow.Add(mgl64.Vec3{0.1, 0, 0}), elbow.Add(mgl64.Vec3{0.6, 0, 0}), 0.07)

	bodies := []*actor.Body{torso, head, upperArm, forearm}
	for _, body := range bodies {
		if err := world.AddBody(body); err != nil {
			return nil, err
		}
	}

	if _, err := world.AddConeTwistConstraint(torso, head, base.Add(mgl64.Vec3{0, 0.55, 0}), mgl64.Vec3{0, 1, 0}, math.Pi/6, math.Pi/4); err != nil {
		return nil, err
	}
	if _, err := world.AddConeTwistConstraint(torso, upperArm, shoulder, mgl64.Vec3{1, 0, 0}, math.Pi/3, math.Pi/6); err != nil {
		return nil, err
	}
	if _, err := world.AddHingeConstraint(upperArm, forearm, elbow, mgl64.Vec3{0, 0, 1}, 0, 2.5); err != nil {
		return nil, err
	}
	return bodies, nil
}

// setupScene builds a ground, a tumbling cube, a chain hanging from a
// kinematic anchor, a ragdoll and a trigger volume on the ground.
func setupScene(world *impulse.World) (*actor.Body, error) {
	ground := actor.NewStaticBody(actor.NewTransform(), actor.NewCollider(
		geometry.AABB{Min: mgl64.Vec3{-20, -1, -20}, Max: mgl64.Vec3{20, 0, 20}},
		actor.DefaultMaterial(),
	))
	if err := world.AddBody(ground); err != nil {
		return nil, err
	}

	cube := createBox(mgl64.Vec3{-5, 5, -5}, mgl64.Vec3{1.5, 1.5, 1.5}, mgl64.QuatRotate(0.4, mgl64.Vec3{0, 0, 1}))
	cube.Colliders[0].Material.Restitution = 0.8
	if err := world.AddBody(cube); err != nil {
		return nil, err
	}

	anchor := actor.NewKinematicBody(actor.NewTransformAt(mgl64.Vec3{5, 8, 0}, mgl64.QuatIdent()))
	if err := world.AddBody(anchor); err != nil {
		return nil, err
	}

	previous := anchor
	for i := range 4 {
		link := actor.NewDynamicBody(
			actor.NewTransformAt(mgl64.Vec3{5 + float64(i+1), 8, 0}, mgl64.QuatIdent()),
			actor.NewCollider(geometry.Sphere{Radius: 0.3}, actor.DefaultMaterial()),
		)
		if err := world.AddBody(link); err != nil {
			return nil, err
		}
		pivot := mgl64.Vec3{5 + float64(i) + 0.5, 8, 0}
		if _, err := world.AddBallConstraint(previous, link, pivot); err != nil {
			return nil, err
		}
		previous = link
	}

	if _, err := addRagdoll(world, mgl64.Vec3{0, 4, 6}); err != nil {
		return nil, err
	}

	trigger := actor.NewTrigger(
		actor.NewTransformAt(mgl64.Vec3{-5, 1, -5}, mgl64.QuatIdent()),
		actor.NewCollider(geometry.AABB{Min: mgl64.Vec3{-2, -1, -2}, Max: mgl64.Vec3{2, 1, 2}}, actor.DefaultMaterial()),
	)
	if err := world.AddBody(trigger); err != nil {
		return nil, err
	}

	return cube, nil
}

func main() {
	configPath := flag.String("config", "", "YAML settings file")
	steps := flag.Int("steps", 240, "frames to simulate")
	verbose := flag.Bool("v", false, "debug logs")
	workers := flag.Int("workers", 0, "worker goroutines, 0 keeps the configured value")
	iterations := flag.Int("iterations", 0, "solver iterations, 0 keeps the configured value")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	settings, err := loadSettings(*configPath, config.Settings{Workers: *workers, RigidSolverIterations: *iterations})
	if err != nil {
		logger.Error("cannot load settings", "error", err)
		os.Exit(1)
	}

	world, err := impulse.NewWorld(settings)
	if err != nil {
		logger.Error("cannot create world", "error", err)
		os.Exit(1)
	}
	world.SetLogger(logger)

	world.Subscribe(impulse.COLLISION_ENTER, func(event impulse.Event) {
		e := event.(impulse.CollisionEnterEvent)
		fmt.Printf("collision %d-%d at %v, speed %.3f\n", e.BodyA.ID, e.BodyB.ID, e.Point, e.RelativeSpeed)
	})
	world.Subscribe(impulse.TRIGGER_ENTER, func(event impulse.Event) {
		e := event.(impulse.TriggerEnterEvent)
		fmt.Printf("body %d entered trigger %d\n", e.Other.ID, e.Trigger.ID)
	})
	world.Subscribe(impulse.TRIGGER_EXIT, func(event impulse.Event) {
		e := event.(impulse.TriggerExitEvent)
		fmt.Printf("body %d left trigger %d\n", e.Other.ID, e.Trigger.ID)
	})

	cube, err := setupScene(world)
	if err != nil {
		logger.Error("cannot build scene", "error", err)
		os.Exit(1)
	}

	const dt = 1.0 / 60
	for frame := range *steps {
		if frame == *steps/2 {
			ray := geometry.NewRay(mgl64.Vec3{-5, 10, -5.5}, mgl64.Vec3{0, -1, 0})
			if body, ok := world.ApplyInteraction(ray, 2000); ok {
				fmt.Printf("poked body %d\n", body.ID)
			}
		}

		world.Step(dt)

		if frame%30 == 0 {
			transform := world.InterpolatedTransform(cube)
			stats := world.Stats()
			fmt.Printf("frame %3d: cube at %v, %d contacts, %d islands\n", frame, transform.Position, stats.Contacts, stats.Islands)
		}
	}
}
