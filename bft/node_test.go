package bft

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarchlab/detnet/sim"
	"github.com/sarchlab/detnet/simulation"
)

func buildCluster(
	seed int64,
	n, rounds int,
	delay sim.Latency,
) (*simulation.Simulation, []*Replica) {
	s := simulation.MakeBuilder().
		WithSeed(seed).
		Build()

	replicas := make([]*Replica, 0, n)
	for i := 0; i < n; i++ {
		r := NewReplica(fmt.Sprintf("Replica%d", i), n, i == 0, rounds).
			WithVoteDelay(delay)
		s.AddNode(r)
		replicas = append(replicas, r)
	}

	err := s.Send(replicas[0].ID(), sim.Message{
		To:      replicas[0].ID(),
		Payload: StartRound{Round: 0},
		Delay:   sim.FixedLatency(0),
	})
	if err != nil {
		panic(err)
	}

	return s, replicas
}

func TestClusterNotarizesAllRounds(t *testing.T) {
	s, replicas := buildCluster(1, 4, 3, sim.FixedLatency(1))

	require.NoError(t, s.Run())

	assert.Equal(t, sim.StateDrained, s.State())
	assert.Empty(t, s.ProtocolErrors())

	for i, r := range replicas {
		assert.Len(t, r.Chain, 3, "replica %d", i)
		assert.Equal(t, 3, r.round, "replica %d", i)
	}
}

func TestSealedBlocksCarryThresholdSignatures(t *testing.T) {
	s, replicas := buildCluster(1, 4, 1, sim.FixedLatency(1))

	require.NoError(t, s.Run())

	want := Threshold(4)
	for _, r := range replicas {
		require.Len(t, r.Chain, 1)
		assert.GreaterOrEqual(t, len(r.Chain[0].proposal.Signers()), want)
		assert.True(t, r.Chain[0].proposal.IsNotarized())
	}
}

func TestChainTipWalksBackToGenesis(t *testing.T) {
	s, replicas := buildCluster(1, 4, 2, sim.FixedLatency(1))

	require.NoError(t, s.Run())

	tip := replicas[0].Last()
	final := tip.LastFinal()
	assert.Equal(t, 4, final.N())
	assert.Nil(t, final.Parent())
}

func TestClusterDeterminism(t *testing.T) {
	run := func() (string, []int) {
		s, replicas := buildCluster(99, 5, 4, sim.UniformLatency(1, 5))
		if err := s.Run(); err != nil {
			panic(err)
		}

		heights := make([]int, 0, len(replicas))
		for _, r := range replicas {
			heights = append(heights, len(r.Chain))
		}
		return s.LogDigest(), heights
	}

	digest1, heights1 := run()
	digest2, heights2 := run()

	assert.Equal(t, digest1, digest2)
	assert.Equal(t, heights1, heights2)
}

func TestClusterUnderRandomDelays(t *testing.T) {
	for seed := int64(0); seed < 10; seed++ {
		t.Run(fmt.Sprintf("seed%d", seed), func(t *testing.T) {
			s, replicas := buildCluster(seed, 4, 3, sim.UniformLatency(1, 4))

			require.NoError(t, s.Run())
			require.Equal(t, sim.StateDrained, s.State())
			assert.Empty(t, s.ProtocolErrors())

			for i, r := range replicas {
				assert.Len(t, r.Chain, 3, "replica %d", i)
			}
		})
	}
}

func TestRogueMessageIsRecordedNotFatal(t *testing.T) {
	s, replicas := buildCluster(1, 4, 1, sim.FixedLatency(1))

	// A round start aimed at a validator is a protocol violation.
	err := s.Send(replicas[1].ID(), sim.Message{
		To:      replicas[1].ID(),
		Payload: StartRound{Round: 0},
		Delay:   sim.FixedLatency(0),
	})
	require.NoError(t, err)

	require.NoError(t, s.Run())

	assert.Equal(t, sim.StateDrained, s.State())
	require.Len(t, s.ProtocolErrors(), 1)
	assert.Equal(t, replicas[1].ID(), s.ProtocolErrors()[0].Node)

	// The violation does not stop the round from sealing.
	for _, r := range replicas {
		assert.Len(t, r.Chain, 1)
	}
}
