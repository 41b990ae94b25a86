package sim

import (
	"math"
	"testing"
)

// === SimulationKey Tests ===

func TestSimulationKey_Creation(t *testing.T) {
	tests := []struct {
		name string
		seed int64
	}{
		{"positive seed", 42},
		{"zero seed", 0},
		{"negative seed", -1},
		{"max int64", math.MaxInt64},
		{"min int64", math.MinInt64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := NewSimulationKey(tt.seed)
			if int64(key) != tt.seed {
				t.Errorf("NewSimulationKey(%d) = %d, want %d", tt.seed, key, tt.seed)
			}
		})
	}
}

// === PartitionedRNG Tests ===

func TestPartitionedRNG_DeterministicDerivation(t *testing.T) {
	// BDD: Same key+name produces same sequence
	rng1 := NewPartitionedRNG(NewSimulationKey(42))
	rng2 := NewPartitionedRNG(NewSimulationKey(42))

	for i := 0; i < 3; i++ {
		v1 := rng1.ForSubsystem(SubsystemChunk(7)).Float64()
		v2 := rng2.ForSubsystem(SubsystemChunk(7)).Float64()
		if v1 != v2 {
			t.Errorf("Value %d: got %v and %v, want identical", i, v1, v2)
		}
	}
}

func TestPartitionedRNG_SubsystemIsolation(t *testing.T) {
	// BDD: Drawing from subsystem A doesn't affect subsystem B
	rngA := NewPartitionedRNG(NewSimulationKey(42))
	for i := 0; i < 10; i++ {
		rngA.ForSubsystem(SubsystemTrials).Float64()
	}
	aChunkFirst := rngA.ForSubsystem(SubsystemChunk(0)).Float64()

	fresh := NewPartitionedRNG(NewSimulationKey(42))
	expectedFirst := fresh.ForSubsystem(SubsystemChunk(0)).Float64()

	if aChunkFirst != expectedFirst {
		t.Errorf("chunk_0 first value = %v, want %v (isolation broken)", aChunkFirst, expectedFirst)
	}
}

func TestPartitionedRNG_TrialsUsesMasterSeed(t *testing.T) {
	// BDD: "trials" subsystem uses master seed directly
	seed := int64(42)
	trials := NewPartitionedRNG(NewSimulationKey(seed)).ForSubsystem(SubsystemTrials)
	direct := newRandFromSeed(seed)

	for i := 0; i < 10; i++ {
		if got, want := trials.Float64(), direct.Float64(); got != want {
			t.Errorf("Value %d: trials RNG = %v, direct RNG = %v", i, got, want)
		}
	}
}

func TestPartitionedRNG_CachesInstance(t *testing.T) {
	rng := NewPartitionedRNG(NewSimulationKey(42))
	if rng.ForSubsystem(SubsystemTrials) != rng.ForSubsystem(SubsystemTrials) {
		t.Error("ForSubsystem returned different instances for same name")
	}
}

func TestPartitionedRNG_Key(t *testing.T) {
	seed := int64(12345)
	rng := NewPartitionedRNG(NewSimulationKey(seed))

	if rng.Key() != SimulationKey(seed) {
		t.Errorf("Key() = %v, want %v", rng.Key(), seed)
	}
}

// === ChunkSeed Tests ===

func TestChunkSeed_DistinctPerIndex(t *testing.T) {
	// GIVEN one master key
	key := NewSimulationKey(2132)

	// WHEN deriving seeds for the first thousand chunks
	seen := make(map[int64]uint64)
	for i := uint64(0); i < 1000; i++ {
		s := ChunkSeed(key, i)
		// THEN no two chunks share a seed
		if prev, dup := seen[s]; dup {
			t.Fatalf("chunks %d and %d share seed %d", prev, i, s)
		}
		seen[s] = i
	}
}

func TestChunkSeed_MatchesSubsystemStream(t *testing.T) {
	key := NewSimulationKey(99)
	fromSeed := newRandFromSeed(ChunkSeed(key, 3)).Float64()
	fromPartition := NewPartitionedRNG(key).ForSubsystem(SubsystemChunk(3)).Float64()
	if fromSeed != fromPartition {
		t.Errorf("ChunkSeed stream %v differs from PartitionedRNG stream %v", fromSeed, fromPartition)
	}
}
