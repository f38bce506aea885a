// Package simulation assembles the pieces of one self-contained run: the
// engine, the network, the random source, and the optional recording and
// monitoring services. A Simulation is created once, driven to completion,
// and then inspected or discarded; it is never resumed across processes.
package simulation

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/sarchlab/detnet/datarecording"
	"github.com/sarchlab/detnet/monitoring"
	"github.com/sarchlab/detnet/sim"
)

// DeliveryTable is the name of the SQLite table the delivery log is
// recorded into.
const DeliveryTable = "deliveries"

// DeliveryRow is the delivery-log schema recorded into SQLite. The payload
// is stored in its printed form, which must itself be deterministic.
type DeliveryRow struct {
	Seq     uint64
	Time    int64
	Src     int
	Dst     int
	Payload string
}

// recorderHook copies every delivery into the data recorder.
type recorderHook struct {
	recorder datarecording.DataRecorder
}

func (h *recorderHook) Func(ctx sim.HookCtx) {
	if ctx.Pos != sim.HookPosNetDeliver {
		return
	}

	d := ctx.Item.(sim.Delivery)
	h.recorder.InsertData(DeliveryTable, DeliveryRow{
		Seq:     uint64(d.Seq),
		Time:    int64(d.Time),
		Src:     int(d.Src),
		Dst:     int(d.Dst),
		Payload: fmt.Sprintf("%v", d.Payload),
	})
}

// A Simulation is one complete run of the simulator for a given seed and
// configuration.
type Simulation struct {
	id   string
	seed int64

	engine  *sim.SerialEngine
	rng     *sim.Rng
	network *sim.Network

	dataRecorder datarecording.DataRecorder
	monitor      *monitoring.Monitor

	stepLimit uint64
	timeLimit sim.VTime
}

// ID returns the unique ID of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// Seed returns the seed the run was constructed with.
func (s *Simulation) Seed() int64 {
	return s.seed
}

// GetEngine returns the engine used in the simulation.
func (s *Simulation) GetEngine() sim.Engine {
	return s.engine
}

// GetNetwork returns the network that owns the simulated nodes.
func (s *Simulation) GetNetwork() *sim.Network {
	return s.network
}

// GetDataRecorder returns the data recorder used in the simulation, or nil
// when recording is off.
func (s *Simulation) GetDataRecorder() datarecording.DataRecorder {
	return s.dataRecorder
}

// AddNode registers a node and returns its assigned ID.
func (s *Simulation) AddNode(n sim.Node) sim.NodeID {
	return s.network.AddNode(n)
}

// Send seeds the run with an initial message.
func (s *Simulation) Send(from sim.NodeID, msg sim.Message) error {
	return s.network.Send(from, msg)
}

// Step processes exactly one event.
func (s *Simulation) Step() (sim.StepOutcome, error) {
	return s.engine.Step()
}

// Run drives the simulation until the queue drains or the configured budget
// is exhausted. A budget-suspended run can be resumed by calling Run again.
func (s *Simulation) Run() error {
	switch {
	case s.timeLimit > 0:
		return s.engine.RunUpTo(s.timeLimit)
	case s.stepLimit > 0:
		return s.engine.RunSteps(s.stepLimit)
	default:
		return s.engine.Run()
	}
}

// RunToCompletion ignores the configured budget and drains the queue.
func (s *Simulation) RunToCompletion() error {
	return s.engine.Run()
}

// Now returns the current virtual time.
func (s *Simulation) Now() sim.VTime {
	return s.engine.CurrentTime()
}

// State returns the life-cycle state of the run.
func (s *Simulation) State() sim.State {
	return s.engine.State()
}

// Fault returns the invariant violation that terminated the run, or nil.
func (s *Simulation) Fault() *sim.FaultError {
	return s.engine.Fault()
}

// DeliveryLog returns the ordered log of delivered events.
func (s *Simulation) DeliveryLog() []sim.Delivery {
	return s.network.DeliveryLog()
}

// ProtocolErrors returns the protocol errors recorded during the run.
func (s *Simulation) ProtocolErrors() []*sim.ProtocolError {
	return s.network.ProtocolErrors()
}

// NodeState returns a read-only snapshot of a node's state. Nodes that
// implement sim.Snapshotter control their snapshot shape; other nodes are
// returned as-is and must not be mutated by the caller.
func (s *Simulation) NodeState(id sim.NodeID) interface{} {
	node := s.network.Node(id)
	if node == nil {
		return nil
	}

	if snap, ok := node.(sim.Snapshotter); ok {
		return snap.Snapshot()
	}

	return node
}

// LogDigest returns a digest of the delivery log. Two runs with the same
// seed and construction produce the same digest on any host, which is what
// the cross-platform harness diffs.
func (s *Simulation) LogDigest() string {
	h := sha256.New()
	for _, d := range s.network.DeliveryLog() {
		fmt.Fprintln(h, d.String())
	}

	return hex.EncodeToString(h.Sum(nil))
}

// Terminate releases the services owned by the simulation.
func (s *Simulation) Terminate() {
	if s.dataRecorder != nil {
		s.dataRecorder.Close()
	}
}
