package main

import (
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/detnet/bft"
	"github.com/sarchlab/detnet/examples/pingpong"
	"github.com/sarchlab/detnet/sim"
	"github.com/sarchlab/detnet/simulation"
)

// buildScenario assembles a simulation for the configured scenario and
// returns it together with a scenario-specific report function to call after
// the run.
func buildScenario(c runConfig) (*simulation.Simulation, func()) {
	b := simulation.MakeBuilder().
		WithSeed(c.Seed).
		WithDefaultDelay(sim.VTime(c.DefaultDelay))

	if c.Steps > 0 {
		b = b.WithStepLimit(c.Steps)
	}
	if c.Horizon != math.MaxInt64 {
		b = b.WithTimeLimit(sim.VTime(c.Horizon))
	}
	if c.Record != "" {
		b = b.WithDataRecording(c.Record)
	}
	if c.MonitorPort != 0 {
		b = b.WithMonitoring(c.MonitorPort)
	}

	s := b.Build()

	delay := sim.Latency{}
	if c.MaxDelay > 0 {
		delay = sim.UniformLatency(sim.VTime(c.MinDelay), sim.VTime(c.MaxDelay))
	}

	switch c.Scenario {
	case "pingpong":
		return s, buildPingPong(s, c, delay)
	case "bft":
		return s, buildBFT(s, c, delay)
	default:
		logrus.Fatalf("Unknown scenario %q", c.Scenario)
		return nil, nil
	}
}

// buildPingPong wires one pinger against nodes-1 pongers.
func buildPingPong(
	s *simulation.Simulation,
	c runConfig,
	delay sim.Latency,
) func() {
	if c.Nodes < 2 {
		logrus.Fatalf("The pingpong scenario needs at least 2 nodes, got %d", c.Nodes)
	}

	targets := make([]sim.NodeID, 0, c.Nodes-1)
	for i := 1; i < c.Nodes; i++ {
		targets = append(targets, sim.NodeID(i))
	}

	pinger := pingpong.NewPinger("Pinger", delay, targets...)
	s.AddNode(pinger)
	for i := 1; i < c.Nodes; i++ {
		s.AddNode(pingpong.NewPonger(fmt.Sprintf("Ponger%d", i), 1))
	}

	mustSend(s, pinger.ID(), sim.Message{
		To:      pinger.ID(),
		Payload: pingpong.Start{},
		Delay:   sim.FixedLatency(0),
	})

	return func() {
		seqs := make([]int, 0, len(pinger.RTTs))
		for seq := range pinger.RTTs {
			seqs = append(seqs, seq)
		}
		sort.Ints(seqs)

		for _, seq := range seqs {
			logrus.Infof("ping %d round trip: %d ticks", seq, pinger.RTTs[seq])
		}
		logrus.Infof("%d of %d pings answered", len(seqs), len(targets))
	}
}

// buildBFT wires one proposer against nodes-1 validators.
func buildBFT(
	s *simulation.Simulation,
	c runConfig,
	delay sim.Latency,
) func() {
	if c.Nodes < 2 {
		logrus.Fatalf("The bft scenario needs at least 2 nodes, got %d", c.Nodes)
	}

	replicas := make([]*bft.Replica, 0, c.Nodes)
	for i := 0; i < c.Nodes; i++ {
		r := bft.NewReplica(fmt.Sprintf("Replica%d", i), c.Nodes, i == 0, c.Rounds).
			WithVoteDelay(delay)
		s.AddNode(r)
		replicas = append(replicas, r)
	}

	mustSend(s, replicas[0].ID(), sim.Message{
		To:      replicas[0].ID(),
		Payload: bft.StartRound{Round: 0},
		Delay:   sim.FixedLatency(0),
	})

	return func() {
		for _, r := range replicas {
			logrus.Infof("%s chain height: %d", r.Name(), len(r.Chain))
		}
	}
}

func mustSend(s *simulation.Simulation, from sim.NodeID, msg sim.Message) {
	if err := s.Send(from, msg); err != nil {
		logrus.Fatalf("Cannot seed the scenario: %v", err)
	}
}
