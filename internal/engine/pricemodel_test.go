package engine

import (
	"math/rand"
	"testing"
)

func TestPriceModel_Deterministic(t *testing.T) {
	m := NewPriceModel(UniformNoise)

	a := m.Next(15000, 0.02, 10000, rand.New(rand.NewSource(42)))
	b := m.Next(15000, 0.02, 10000, rand.New(rand.NewSource(42)))

	if a != b {
		t.Fatalf("expected identical ticks for same seed, got %+v and %+v", a, b)
	}
}

func TestPriceModel_DifferentSeedsDiverge(t *testing.T) {
	m := NewPriceModel(UniformNoise)

	rngA := rand.New(rand.NewSource(1))
	rngB := rand.New(rand.NewSource(2))

	same := true
	for i := 0; i < 10; i++ {
		if m.Next(15000, 0.05, 10000, rngA) != m.Next(15000, 0.05, 10000, rngB) {
			same = false
			break
		}
	}
	if same {
		t.Fatal("expected different seeds to produce different price paths")
	}
}

func TestPriceModel_FixedNoise(t *testing.T) {
	// z = 1/3 with volatility 0.01 moves 150.00 to 150.50.
	m := NewPriceModel(func(*rand.Rand) float64 { return 1.0 / 3.0 })

	pt := m.Next(15000, 0.01, 10000, rand.New(rand.NewSource(1)))
	if pt.Price != 15050 {
		t.Fatalf("expected price 15050, got %d", pt.Price)
	}
	if pt.Change != 50 {
		t.Fatalf("expected change 50, got %d", pt.Change)
	}
	if pt.ChangePercent < 0.33 || pt.ChangePercent > 0.34 {
		t.Fatalf("expected change_percent ~0.333, got %f", pt.ChangePercent)
	}
}

func TestPriceModel_FlooredAtOneCent(t *testing.T) {
	// Maximum downward draw with full volatility would zero the price.
	m := NewPriceModel(func(*rand.Rand) float64 { return -1 })

	pt := m.Next(1, 1.0, 10000, rand.New(rand.NewSource(1)))
	if pt.Price != minPrice {
		t.Fatalf("expected floor price %d, got %d", minPrice, pt.Price)
	}
}

func TestPriceModel_VolumeNonNegative(t *testing.T) {
	m := NewPriceModel(UniformNoise)
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 100; i++ {
		pt := m.Next(15000, 0.5, 10000, rng)
		if pt.Volume < 0 {
			t.Fatalf("expected non-negative volume, got %d", pt.Volume)
		}
	}
}

func TestPriceModel_ZeroBaseVolume(t *testing.T) {
	m := NewPriceModel(UniformNoise)

	pt := m.Next(15000, 0.02, 0, rand.New(rand.NewSource(1)))
	if pt.Volume != 0 {
		t.Fatalf("expected zero volume from zero base, got %d", pt.Volume)
	}
}

func TestPriceModel_NilNoiseDefaultsToUniform(t *testing.T) {
	m := NewPriceModel(nil)

	a := m.Next(15000, 0.02, 10000, rand.New(rand.NewSource(9)))
	b := NewPriceModel(UniformNoise).Next(15000, 0.02, 10000, rand.New(rand.NewSource(9)))
	if a != b {
		t.Fatalf("expected nil noise to behave as UniformNoise, got %+v and %+v", a, b)
	}
}
