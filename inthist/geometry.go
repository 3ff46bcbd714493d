package inthist

import (
	"math"
	"math/bits"
)

// geometry holds the derived, immutable-after-construction bucket layout
// shared by Histogram and ConcurrentHistogram. It is grounded directly
// in the HDR histogram bucket/sub-bucket arithmetic: given a lowest
// discernible value, a highest trackable value, and a number of
// significant decimal digits, every value in [0, highestTrackableValue]
// maps to exactly one counts[] slot with relative error bounded by
// 10^-significantFigures.
type geometry struct {
	lowestDiscernibleValue      int64
	highestTrackableValue       int64
	unitMagnitude               int64
	significantFigures          int64
	subBucketHalfCountMagnitude int32
	subBucketHalfCount          int32
	subBucketMask               int64
	subBucketCount              int32
	bucketCount                 int32
	countsLen                   int32
}

func newGeometry(lowestDiscernibleValue, highestTrackableValue int64, significantFigures int) (geometry, error) {
	if significantFigures < 0 || significantFigures > 5 {
		return geometry{}, Validation.New("significantFigures must be in [0, 5], got %d", significantFigures)
	}
	if lowestDiscernibleValue < 1 {
		return geometry{}, Validation.New("lowestDiscernibleValue must be >= 1, got %d", lowestDiscernibleValue)
	}
	if highestTrackableValue < 2*lowestDiscernibleValue {
		return geometry{}, Validation.New("highestTrackableValue must be >= 2*lowestDiscernibleValue")
	}

	// a d-significant-digit accuracy requires single unit resolution up
	// to 2*10^d; find the power-of-two sub-bucket count large enough to
	// provide that resolution.
	largestValueWithSingleUnitResolution := 2 * math.Pow10(significantFigures)
	subBucketCountMagnitude := int32(math.Ceil(math.Log2(largestValueWithSingleUnitResolution)))

	subBucketHalfCountMagnitude := subBucketCountMagnitude
	if subBucketHalfCountMagnitude < 1 {
		subBucketHalfCountMagnitude = 1
	}
	subBucketHalfCountMagnitude--

	unitMagnitude := int32(math.Floor(math.Log2(float64(lowestDiscernibleValue))))
	if unitMagnitude < 0 {
		unitMagnitude = 0
	}

	subBucketCount := int32(1) << uint(subBucketHalfCountMagnitude+1)
	subBucketHalfCount := subBucketCount / 2
	subBucketMask := int64(subBucketCount-1) << uint(unitMagnitude)

	smallestUntrackableValue := int64(subBucketCount) << uint(unitMagnitude)
	bucketCount := int32(1)
	for smallestUntrackableValue <= highestTrackableValue {
		if smallestUntrackableValue > math.MaxInt64/2 {
			bucketCount++
			break
		}
		smallestUntrackableValue <<= 1
		bucketCount++
	}

	if bucketCount > 63 {
		return geometry{}, Validation.New("configuration needs %d buckets, more than the 63 this package supports", bucketCount)
	}

	countsLen := (bucketCount + 1) * subBucketHalfCount

	return geometry{
		lowestDiscernibleValue:      lowestDiscernibleValue,
		highestTrackableValue:       highestTrackableValue,
		unitMagnitude:               int64(unitMagnitude),
		significantFigures:          int64(significantFigures),
		subBucketHalfCountMagnitude: subBucketHalfCountMagnitude,
		subBucketHalfCount:          subBucketHalfCount,
		subBucketMask:               subBucketMask,
		subBucketCount:              subBucketCount,
		bucketCount:                 bucketCount,
		countsLen:                   countsLen,
	}, nil
}

func (g *geometry) sameGeometry(o *geometry) bool {
	return g.lowestDiscernibleValue == o.lowestDiscernibleValue &&
		g.highestTrackableValue == o.highestTrackableValue &&
		g.significantFigures == o.significantFigures
}

// getBucketIndex returns the lowest (highest precision) bucket index
// that can represent v.
func (g *geometry) getBucketIndex(v int64) int32 {
	pow2Ceiling := int64(64 - bits.LeadingZeros64(uint64(v)|uint64(g.subBucketMask)))
	return int32(pow2Ceiling - g.unitMagnitude - int64(g.subBucketHalfCountMagnitude+1))
}

func (g *geometry) getSubBucketIdx(v int64, bucketIdx int32) int32 {
	return int32(v >> uint(int64(bucketIdx)+g.unitMagnitude))
}

func (g *geometry) getBucketBaseIdx(bucketIdx int32) int32 {
	return (bucketIdx + 1) << uint(g.subBucketHalfCountMagnitude)
}

func (g *geometry) countsIndex(bucketIdx, subBucketIdx int32) int32 {
	return g.getBucketBaseIdx(bucketIdx) + subBucketIdx - g.subBucketHalfCount
}

// countsIndexFor returns the counts[] slot for v, or -1 if v exceeds
// highestTrackableValue.
func (g *geometry) countsIndexFor(v int64) int32 {
	if v < 0 || v > g.highestTrackableValue {
		return -1
	}
	bucketIdx := g.getBucketIndex(v)
	subBucketIdx := g.getSubBucketIdx(v, bucketIdx)
	return g.countsIndex(bucketIdx, subBucketIdx)
}

func (g *geometry) valueFromIndexParts(bucketIdx, subBucketIdx int32) int64 {
	return int64(subBucketIdx) << uint(int64(bucketIdx)+g.unitMagnitude)
}

// valueFromIndex returns the representative (lowest equivalent) value
// for a counts[] slot, the inverse of countsIndexFor.
func (g *geometry) valueFromIndex(idx int32) int64 {
	bucketIdx := idx>>uint(g.subBucketHalfCountMagnitude+1) - 1
	var subBucketIdx int32
	if bucketIdx < 0 {
		bucketIdx = 0
		subBucketIdx = idx
	} else {
		subBucketIdx = (idx & (g.subBucketHalfCount - 1)) + g.subBucketHalfCount
	}
	return g.valueFromIndexParts(bucketIdx, subBucketIdx)
}

func (g *geometry) sizeOfEquivalentValueRange(v int64) int64 {
	bucketIdx := g.getBucketIndex(v)
	subBucketIdx := g.getSubBucketIdx(v, bucketIdx)
	adjustedBucket := bucketIdx
	if subBucketIdx >= g.subBucketCount {
		adjustedBucket++
	}
	return int64(1) << uint(g.unitMagnitude+int64(adjustedBucket))
}

func (g *geometry) lowestEquivalentValue(v int64) int64 {
	bucketIdx := g.getBucketIndex(v)
	subBucketIdx := g.getSubBucketIdx(v, bucketIdx)
	return g.valueFromIndexParts(bucketIdx, subBucketIdx)
}

func (g *geometry) nextNonEquivalentValue(v int64) int64 {
	return g.lowestEquivalentValue(v) + g.sizeOfEquivalentValueRange(v)
}

func (g *geometry) highestEquivalentValue(v int64) int64 {
	return g.nextNonEquivalentValue(v) - 1
}

func (g *geometry) medianEquivalentValue(v int64) int64 {
	return g.lowestEquivalentValue(v) + g.sizeOfEquivalentValueRange(v)>>1
}

// countsRangeForBucket returns the [start, start+n) slice of counts[]
// that belongs to bucket bucketIdx, letting callers skip whole buckets
// when iterating sparsely-populated histograms.
func (g *geometry) countsRangeForBucket(bucketIdx int32) (start, n int32) {
	if bucketIdx == 0 {
		return 0, g.subBucketCount
	}
	return g.getBucketBaseIdx(bucketIdx), g.subBucketHalfCount
}
