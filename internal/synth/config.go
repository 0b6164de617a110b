package synth

import "fmt"

// Config controls tick synthesis. All fields are fixed at engine
// construction; the seed fully determines the output for a given input.
type Config struct {
	TicksPerMin int     `yaml:"ticks_per_min" json:"ticks_per_min"`
	SpreadMean  float64 `yaml:"spread_mean" json:"spread_mean"`
	SpreadVol   float64 `yaml:"spread_vol" json:"spread_vol"`
	VolumeNoise float64 `yaml:"volume_noise" json:"volume_noise"`
	TrendWeight float64 `yaml:"trend_weight" json:"trend_weight"`
	Seed        int64   `yaml:"seed" json:"seed"`
}

// DefaultConfig returns the generator defaults
func DefaultConfig() Config {
	return Config{
		TicksPerMin: 120,
		SpreadMean:  0.0015,
		SpreadVol:   0.0003,
		VolumeNoise: 0.4,
		TrendWeight: 0.6,
		Seed:        42,
	}
}

// Validate rejects degenerate configurations before they can reach the
// synthesis loops as divisions by zero or negative counts.
func (c Config) Validate() error {
	if c.TicksPerMin <= 0 {
		return fmt.Errorf("ticks_per_min must be > 0, got %d", c.TicksPerMin)
	}
	if c.SpreadVol < 0 {
		return fmt.Errorf("spread_vol must be >= 0, got %g", c.SpreadVol)
	}
	if c.VolumeNoise < 0 {
		return fmt.Errorf("volume_noise must be >= 0, got %g", c.VolumeNoise)
	}
	return nil
}
