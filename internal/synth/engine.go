package synth

import (
	"encoding/binary"
	"hash/fnv"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/quantbr/ticksynth/internal/model"
)

const (
	// U-shape activity curve parameters: elevated open/close activity
	// decaying exponentially into a flat midday baseline.
	openCloseBoost = 3.0
	activityDecay  = 10.0
	middayBaseline = 1.0
	curveNoiseStd  = 0.1
	weightFloor    = 0.1

	// Mid-price jitter std-dev as a fraction of the candle range.
	jitterDivisor = 200.0

	// Spread fraction floor. The raw Gaussian draw can go negative on
	// rare tails, which would invert bid/ask; the floor keeps quotes
	// ordered without visibly distorting the spread distribution.
	spreadFracFloor = 1e-4

	// Execution slippage band around the hit quote.
	slippageBand = 0.001

	// Buy probability for ticks under a bullish candle. Bearish candles
	// use the complement.
	bullBuyProb = 0.55
)

// Engine synthesizes intraday tick streams from minute OHLCV candles.
// It owns a single seeded random stream consumed in a fixed sequential
// order, so a given (config, input) pair always produces byte-identical
// output. An Engine is not safe for concurrent use; derive one per
// session with ForSession for parallel generation.
type Engine struct {
	cfg Config
	rng *rand.Rand
}

// New creates an engine from a validated config
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// ForSession derives an independently seeded engine for one session key
// (e.g. "PETR4.SA|2025-08-22"). The child seed is a stable hash of the
// parent seed and the key, so parallel sessions stay reproducible
// without sharing the parent's random stream.
func (e *Engine) ForSession(key string) *Engine {
	h := fnv.New64a()
	var seed [8]byte
	binary.BigEndian.PutUint64(seed[:], uint64(e.cfg.Seed))
	h.Write(seed[:])
	h.Write([]byte(key))
	child := e.cfg
	child.Seed = int64(h.Sum64())
	return &Engine{
		cfg: child,
		rng: rand.New(rand.NewSource(child.Seed)),
	}
}

// GenerateSession produces the full tick sequence for one trading
// session. Candles must be in chronological order. Incomplete candles
// are dropped, an empty input yields an empty output, and the result is
// globally sorted by timestamp.
//
// Random draws happen in a fixed order: the activity-curve noise first
// (when stats are present), then per candle the path jitter and volume
// weights, then per tick the spread, side and slippage draws.
func (e *Engine) GenerateSession(candles []model.Candle, stats *model.SessionStats) []model.Tick {
	complete := make([]model.Candle, 0, len(candles))
	for _, c := range candles {
		if c.Complete() {
			complete = append(complete, c)
		}
	}

	var schedule []int
	if stats != nil && stats.TotalTrades >= 1 {
		schedule = e.tickSchedule(len(complete), stats.TotalTrades)
	}

	ticks := make([]model.Tick, 0, len(complete)*e.cfg.TicksPerMin)
	for i, c := range complete {
		numTicks := e.cfg.TicksPerMin
		if schedule != nil {
			numTicks = schedule[i]
		}
		ticks = append(ticks, e.generateCandle(c, numTicks)...)
	}

	sort.SliceStable(ticks, func(i, j int) bool {
		return ticks[i].Timestamp.Before(ticks[j].Timestamp)
	})
	return ticks
}

// generateCandle emits numTicks ticks evenly spaced across one candle's
// minute.
func (e *Engine) generateCandle(c model.Candle, numTicks int) []model.Tick {
	mids := e.midPath(c, numTicks)
	volumes := e.allocateVolumes(c.Volume, numTicks)
	step := time.Minute / time.Duration(numTicks)

	ticks := make([]model.Tick, 0, numTicks)
	for i := 0; i < numTicks; i++ {
		bid, ask := e.quote(mids[i], c)

		buyProb := 1 - bullBuyProb
		if c.Bullish() {
			buyProb = bullBuyProb
		}
		side := model.SideSell
		if e.rng.Float64() < buyProb {
			side = model.SideBuy
		}

		hit := bid
		if side == model.SideBuy {
			hit = ask
		}
		slip := 1 - slippageBand + 2*slippageBand*e.rng.Float64()
		price := round4(clamp(hit*slip, c.Low, c.High))

		ticks = append(ticks, model.Tick{
			Timestamp:  c.Timestamp.Add(time.Duration(i) * step),
			Bid:        round4(bid),
			Ask:        round4(ask),
			TradePrice: price,
			Volume:     volumes[i],
			Side:       side,
		})
	}
	return ticks
}

// tickSchedule distributes totalTicks across numMinutes following the
// U-shape intraday activity curve. Each minute gets at least one tick,
// so the sum only approximates the target.
func (e *Engine) tickSchedule(numMinutes, totalTicks int) []int {
	if numMinutes == 0 {
		return nil
	}
	weights := e.uShapeCurve(numMinutes)

	var sum float64
	for _, w := range weights {
		sum += w
	}

	counts := make([]int, numMinutes)
	for i, w := range weights {
		n := int(w / sum * float64(totalTicks))
		if n < 1 {
			n = 1
		}
		counts[i] = n
	}
	return counts
}

// uShapeCurve returns one activity weight per minute: exponential decay
// from the open plus exponential rise into the close over a constant
// midday baseline, roughened by multiplicative noise and floored to
// keep every minute active.
func (e *Engine) uShapeCurve(numMinutes int) []float64 {
	denom := float64(numMinutes - 1)
	if denom == 0 {
		denom = 1
	}
	weights := make([]float64, numMinutes)
	for m := range weights {
		t := float64(m) / denom
		w := openCloseBoost*math.Exp(-activityDecay*t) +
			openCloseBoost*math.Exp(-activityDecay*(1-t)) +
			middayBaseline
		w *= 1 + curveNoiseStd*e.rng.NormFloat64()
		if w < weightFloor {
			w = weightFloor
		}
		weights[m] = w
	}
	return weights
}

// midPath builds numTicks mid prices from open to close: linear
// interpolation, a trend ramp reinforcing the open->close drift, and
// Gaussian jitter scaled by the candle range. Clipping into [low, high]
// is what guarantees OHLC conformance for the unbounded noise.
func (e *Engine) midPath(c model.Candle, numTicks int) []float64 {
	jitterStd := c.Range() / jitterDivisor

	mids := make([]float64, numTicks)
	for i := range mids {
		frac := 0.0
		if numTicks > 1 {
			frac = float64(i) / float64(numTicks-1)
		}
		base := c.Open + (c.Close-c.Open)*frac
		drift := e.cfg.TrendWeight * (c.Close - c.Open) * frac
		noise := jitterStd * e.rng.NormFloat64()
		mids[i] = clamp(base+drift+noise, c.Low, c.High)
	}
	return mids
}

// allocateVolumes splits the candle volume across numTicks using
// folded-normal weights. Truncation to integers means the sum only
// approximates the candle volume, and near-zero weights may land on 0.
func (e *Engine) allocateVolumes(totalVolume float64, numTicks int) []int64 {
	weights := make([]float64, numTicks)
	var sum float64
	for i := range weights {
		w := math.Abs(1 + e.cfg.VolumeNoise*e.rng.NormFloat64())
		weights[i] = w
		sum += w
	}

	volumes := make([]int64, numTicks)
	if sum == 0 {
		return volumes
	}
	for i, w := range weights {
		volumes[i] = int64(w / sum * totalVolume)
	}
	return volumes
}

// quote derives a bid/ask pair around the mid price. The spread
// fraction is floored at a small positive epsilon and both quotes are
// clamped into the candle range, mirroring the mid-price clip.
func (e *Engine) quote(mid float64, c model.Candle) (bid, ask float64) {
	frac := e.cfg.SpreadMean + e.cfg.SpreadVol*e.rng.NormFloat64()
	if frac < spreadFracFloor {
		frac = spreadFracFloor
	}
	spread := mid * frac
	bid = clamp(mid-spread/2, c.Low, c.High)
	ask = clamp(mid+spread/2, c.Low, c.High)
	return bid, ask
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
