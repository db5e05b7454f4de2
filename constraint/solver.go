package constraint

import (
	"github.com/akmonengine/impulse/actor"
	"github.com/akmonengine/impulse/arena"
	"github.com/akmonengine/impulse/narrowphase"
)

// Joints holds the joints taking part in a step, each kind with its parallel
// body pairs.
type Joints struct {
	Distance      []DistanceConstraint
	DistancePairs []narrowphase.BodyPair

	Ball      []BallConstraint
	BallPairs []narrowphase.BodyPair

	Hinge      []HingeConstraint
	HingePairs []narrowphase.BodyPair

	ConeTwist      []ConeTwistConstraint
	ConeTwistPairs []narrowphase.BodyPair
}

// Len returns the number of joints of every kind.
func (j *Joints) Len() int {
	return len(j.Distance) + len(j.Ball) + len(j.Hinge) + len(j.ConeTwist)
}

// Pairs appends the body pairs of every joint, then contactPairs, into one
// slice carved from a. Island building indexes constraints in this order.
func (j *Joints) Pairs(contactPairs []narrowphase.BodyPair, a *arena.Arena) []narrowphase.BodyPair {
	pairs := arena.Alloc[narrowphase.BodyPair](a, j.Len()+len(contactPairs))
	n := copy(pairs, j.DistancePairs)
	n += copy(pairs[n:], j.BallPairs)
	n += copy(pairs[n:], j.HingePairs)
	n += copy(pairs[n:], j.ConeTwistPairs)
	n += copy(pairs[n:], contactPairs)
	return pairs[:n]
}

// Solver holds the rows of one step. Its buffers live in the step arena.
type Solver struct {
	globals []actor.GlobalState
	joints  Joints

	distance  []DistanceUpdate
	ball      []BallUpdate
	hinge     []HingeUpdate
	coneTwist []ConeTwistUpdate

	contacts     []ContactUpdate
	contactPairs []narrowphase.BodyPair

	distanceBatches []DistanceBatch
	ballBatches     []BallBatch
	contactBatches  []ContactBatch

	contactSchedule Schedule
}

// Initialize builds every row from the global states. With useLanes, distance,
// ball and contact rows are scheduled into float32 batches; a kind whose
// schedule does not fit in the arena falls back to scalar rows.
func (s *Solver) Initialize(globals []actor.GlobalState, joints Joints, contacts []narrowphase.Contact, contactPairs []narrowphase.BodyPair, dummy uint16, useLanes bool, dt float64, a *arena.Arena) {
	*s = Solver{globals: globals, joints: joints, contactPairs: contactPairs}

	if useLanes {
		if schedule := ScheduleLanes(joints.DistancePairs, dummy, a); schedule.Rows > 0 {
			s.distanceBatches = InitializeDistanceBatched(joints.Distance, joints.DistancePairs, globals, schedule, dt, a)
		}
		if schedule := ScheduleLanes(joints.BallPairs, dummy, a); schedule.Rows > 0 {
			s.ballBatches = InitializeBallBatched(joints.Ball, joints.BallPairs, globals, schedule, dt, a)
		}
		if schedule := ScheduleLanes(contactPairs, dummy, a); schedule.Rows > 0 {
			s.contactSchedule = schedule
			s.contactBatches = InitializeContactsBatched(contacts, contactPairs, globals, schedule, dt, a)
		}
	}

	if s.distanceBatches == nil {
		s.distance = InitializeDistance(joints.Distance, joints.DistancePairs, globals, dt, a)
	}
	if s.ballBatches == nil {
		s.ball = InitializeBall(joints.Ball, joints.BallPairs, globals, dt, a)
	}
	s.hinge = InitializeHinge(joints.Hinge, joints.HingePairs, globals, dt, a)
	s.coneTwist = InitializeConeTwist(joints.ConeTwist, joints.ConeTwistPairs, globals, dt, a)
	if s.contactBatches == nil {
		s.contacts = InitializeContacts(contacts, contactPairs, globals, dt, a)
	}
}

// SolveIteration runs one pass over every row: distance, ball, hinge and
// cone-twist joints, then contacts.
func (s *Solver) SolveIteration() {
	if s.distanceBatches != nil {
		SolveDistanceBatched(s.distanceBatches, s.globals)
	} else {
		SolveDistance(s.distance, s.joints.DistancePairs, s.globals)
	}

	if s.ballBatches != nil {
		SolveBallBatched(s.ballBatches, s.globals)
	} else {
		SolveBall(s.ball, s.joints.BallPairs, s.globals)
	}

	SolveHinge(s.hinge, s.joints.HingePairs, s.globals)
	SolveConeTwist(s.coneTwist, s.joints.ConeTwistPairs, s.globals)

	if s.contactBatches != nil {
		SolveContactsBatched(s.contactBatches, s.globals)
	} else {
		SolveContacts(s.contacts, s.contactPairs, s.globals)
	}
}

func (s *Solver) Solve(iterations int) {
	for range iterations {
		s.SolveIteration()
	}
}

// ContactFillRate returns the lane fill rate of the contact batches, 0 on the scalar path.
func (s *Solver) ContactFillRate() float64 {
	return s.contactSchedule.FillRate()
}
