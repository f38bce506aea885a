package simulation

import (
	"github.com/rs/xid"

	"github.com/sarchlab/detnet/datarecording"
	"github.com/sarchlab/detnet/monitoring"
	"github.com/sarchlab/detnet/sim"
)

// Builder can be used to build a simulation.
type Builder struct {
	seed           int64
	defaultDelay   sim.VTime
	stepLimit      uint64
	timeLimit      sim.VTime
	recordOn       bool
	outputFileName string
	monitorOn      bool
	monitorPort    int
}

// MakeBuilder creates a new builder with a zero seed and a one-tick default
// message delay.
func MakeBuilder() Builder {
	return Builder{
		defaultDelay: 1,
	}
}

// WithSeed sets the seed of the run's deterministic random source. Two runs
// built with the same seed and the same construction are bit-identical.
func (b Builder) WithSeed(seed int64) Builder {
	b.seed = seed
	return b
}

// WithDefaultDelay sets the delay of messages that do not carry their own
// latency specification.
func (b Builder) WithDefaultDelay(d sim.VTime) Builder {
	b.defaultDelay = d
	return b
}

// WithStepLimit makes Run suspend after n delivered events.
func (b Builder) WithStepLimit(n uint64) Builder {
	b.stepLimit = n
	return b
}

// WithTimeLimit makes Run suspend instead of delivering events scheduled
// after t.
func (b Builder) WithTimeLimit(t sim.VTime) Builder {
	b.timeLimit = t
	return b
}

// WithDataRecording records every delivery into a SQLite database so that
// logs can be diffed across machines.
func (b Builder) WithDataRecording(filename string) Builder {
	b.recordOn = true
	b.outputFileName = filename
	return b
}

// WithMonitoring starts an HTTP inspection server for the run.
func (b Builder) WithMonitoring(port int) Builder {
	b.monitorOn = true
	b.monitorPort = port
	return b
}

func (b Builder) parametersMustBeValid() {
	if !b.monitorOn && b.monitorPort != 0 {
		panic("monitor port cannot be set when monitoring is disabled")
	}

	if !b.recordOn && b.outputFileName != "" {
		panic("output file cannot be set when recording is disabled")
	}
}

// Build builds the simulation.
func (b Builder) Build() *Simulation {
	b.parametersMustBeValid()

	s := &Simulation{
		id:        xid.New().String(),
		seed:      b.seed,
		stepLimit: b.stepLimit,
		timeLimit: b.timeLimit,
	}

	s.engine = sim.NewSerialEngine()
	s.rng = sim.NewRng(b.seed)
	s.network = sim.NewNetwork("Net", s.engine, s.rng, b.defaultDelay)

	if b.recordOn {
		outputPath := b.outputFileName
		if outputPath == "" {
			outputPath = "detnet_run_" + s.id
		}

		s.dataRecorder = datarecording.New(outputPath)
		s.dataRecorder.CreateTable(DeliveryTable, DeliveryRow{})
		s.network.AcceptHook(&recorderHook{recorder: s.dataRecorder})
	}

	if b.monitorOn {
		s.monitor = monitoring.NewMonitor()
		if b.monitorPort > 0 {
			s.monitor.WithPortNumber(b.monitorPort)
		}
		s.monitor.RegisterEngine(s.engine)
		s.monitor.RegisterNetwork(s.network)
		s.monitor.StartServer()
	}

	return s
}
