package deploy

import (
	"math"
	"math/bits"
)

const mib = 1 << 20

// Estimator predicts the network fee for a payload of size bytes.
type Estimator interface {
	Estimate(size int64) uint64
}

// EstimatorFunc adapts a function to Estimator.
type EstimatorFunc func(size int64) uint64

func (f EstimatorFunc) Estimate(size int64) uint64 { return f(size) }

// RateEstimator charges a flat WincPerMiB, rounded up.
type RateEstimator struct {
	WincPerMiB uint64
}

// Estimate returns ceil(size * WincPerMiB / 2^20), saturating at MaxUint64.
func (r RateEstimator) Estimate(size int64) uint64 {
	if size <= 0 || r.WincPerMiB == 0 {
		return 0
	}
	hi, lo := bits.Mul64(uint64(size), r.WincPerMiB)
	if hi >= mib {
		return math.MaxUint64
	}
	q, rem := bits.Div64(hi, lo, mib)
	if rem != 0 {
		q++
	}
	return q
}

// BytesFor returns how many bytes winc pays for at this rate.
func (r RateEstimator) BytesFor(winc uint64) uint64 {
	if r.WincPerMiB == 0 {
		return 0
	}
	hi, lo := bits.Mul64(winc, mib)
	if hi >= r.WincPerMiB {
		return math.MaxUint64
	}
	q, _ := bits.Div64(hi, lo, r.WincPerMiB)
	return q
}
