package recorder

import (
	"sync/atomic"
	"unsafe"

	"github.com/gitter-badger/HdrHistogram/floathist"
	"github.com/gitter-badger/HdrHistogram/phaser"
)

// DefaultAutoResizeHighestToLowestValueRatio is the ceiling used by
// NewDoubleIntervalRecorder, which does not expose an explicit ratio.
const DefaultAutoResizeHighestToLowestValueRatio = int64(1) << 52

// DoubleIntervalRecorder is the double-precision counterpart of
// IntervalRecorder, built the same way: double-buffered concurrent
// double histograms swapped under a phaser. Unlike IntervalRecorder,
// writers are not wait-free: every record serializes on the active
// ConcurrentDoubleHistogram's internal mutex.
type DoubleIntervalRecorder struct {
	p *phaser.Phaser

	highestToLowestValueRatio int64
	significantDigits         int

	instanceID int64

	active   unsafe.Pointer
	inactive unsafe.Pointer
}

// NewDoubleIntervalRecorder constructs an auto-resizing double
// recorder. As with NewIntervalRecorder, auto-resize is not
// implemented; the ratio is fixed at a generous ceiling instead.
func NewDoubleIntervalRecorder(significantDigits int) (*DoubleIntervalRecorder, error) {
	return NewDoubleIntervalRecorderWithRatio(DefaultAutoResizeHighestToLowestValueRatio, significantDigits)
}

// NewDoubleIntervalRecorderWithRatio constructs a recorder able to
// represent values whose ratio of largest to smallest magnitude never
// exceeds highestToLowestValueRatio.
func NewDoubleIntervalRecorderWithRatio(highestToLowestValueRatio int64, significantDigits int) (*DoubleIntervalRecorder, error) {
	id := nextInstanceID()

	active, err := newConcurrentDoubleFor(highestToLowestValueRatio, significantDigits, id)
	if err != nil {
		return nil, err
	}
	inactive, err := newConcurrentDoubleFor(highestToLowestValueRatio, significantDigits, id)
	if err != nil {
		return nil, err
	}

	r := &DoubleIntervalRecorder{
		p: phaser.New(),

		highestToLowestValueRatio: highestToLowestValueRatio,
		significantDigits:         significantDigits,

		instanceID: id,
	}
	r.storeActive(active)
	r.storeInactive(inactive)
	return r, nil
}

func newConcurrentDoubleFor(ratio int64, digits int, id int64) (*floathist.ConcurrentDoubleHistogram, error) {
	h, err := floathist.NewConcurrent(ratio, digits)
	if err != nil {
		return nil, err
	}
	h.InstanceID = id
	return h, nil
}

func (r *DoubleIntervalRecorder) loadActive() *floathist.ConcurrentDoubleHistogram {
	return (*floathist.ConcurrentDoubleHistogram)(atomic.LoadPointer(&r.active))
}

func (r *DoubleIntervalRecorder) storeActive(h *floathist.ConcurrentDoubleHistogram) {
	atomic.StorePointer(&r.active, unsafe.Pointer(h))
}

func (r *DoubleIntervalRecorder) storeInactive(h *floathist.ConcurrentDoubleHistogram) {
	atomic.StorePointer(&r.inactive, unsafe.Pointer(h))
}

// RecordValue records a single occurrence of v. It may block on the
// active histogram's mutex while another writer records.
func (r *DoubleIntervalRecorder) RecordValue(v float64) error {
	return r.RecordValueWithCount(v, 1)
}

// RecordValueWithCount records n occurrences of v. It may block on the
// active histogram's mutex while another writer records.
func (r *DoubleIntervalRecorder) RecordValueWithCount(v float64, n int64) (err error) {
	t := r.p.WriterCriticalSectionEnter()
	defer r.p.WriterCriticalSectionExit(t)

	err = r.loadActive().RecordValueWithCount(v, n)
	return err
}

// RecordValueWithExpectedInterval records v, performing coordinated
// omission correction against expectedInterval. It may block on the
// active histogram's mutex while another writer records.
func (r *DoubleIntervalRecorder) RecordValueWithExpectedInterval(v, expectedInterval float64) (err error) {
	t := r.p.WriterCriticalSectionEnter()
	defer r.p.WriterCriticalSectionExit(t)

	err = r.loadActive().RecordValueWithExpectedInterval(v, expectedInterval)
	return err
}

// GetIntervalHistogram returns a histogram containing every value
// recorded since the previous call to GetIntervalHistogram (or since
// construction, for the first call). If recycle is non-nil, it must
// have been returned by an earlier call to this same recorder.
func (r *DoubleIntervalRecorder) GetIntervalHistogram(recycle *floathist.ConcurrentDoubleHistogram) (*floathist.ConcurrentDoubleHistogram, error) {
	if recycle == nil {
		fresh, err := newConcurrentDoubleFor(r.highestToLowestValueRatio, r.significantDigits, r.instanceID)
		if err != nil {
			return nil, err
		}
		recycle = fresh
	} else if recycle.InstanceID != r.instanceID {
		return nil, Validation.New("recycle buffer belongs to a different recorder instance")
	}

	r.p.ReaderLock()
	defer r.p.ReaderUnlock()

	recycle.Reset()

	oldActive := r.loadActive()
	r.storeActive(recycle)
	r.storeInactive(oldActive)

	now := nowMsec()
	r.loadActive().SetStartTimeStampMsec(now)
	oldActive.SetEndTimeStampMsec(now)

	r.p.FlipPhase(flipSleepInterval)

	oldActive.ValidateQuiesced()
	return oldActive, nil
}

// GetIntervalHistogramInto performs the same snapshot cycle as
// GetIntervalHistogram, then resets target and adds the snapshot into
// it.
func (r *DoubleIntervalRecorder) GetIntervalHistogramInto(target *floathist.DoubleHistogram) error {
	snapshot, err := r.GetIntervalHistogram(nil)
	if err != nil {
		return err
	}
	target.Reset()
	return snapshot.CopyInto(target)
}

// Reset clears both the active and inactive buffers by performing two
// snapshot cycles back-to-back.
func (r *DoubleIntervalRecorder) Reset() error {
	if _, err := r.GetIntervalHistogram(nil); err != nil {
		return err
	}
	_, err := r.GetIntervalHistogram(nil)
	return err
}

// Current returns the live (active) histogram, for cheap, approximate,
// non-blocking observability.
func (r *DoubleIntervalRecorder) Current() *floathist.ConcurrentDoubleHistogram {
	return r.loadActive()
}

// InstanceID returns the recorder's process-wide monotonic identifier.
func (r *DoubleIntervalRecorder) InstanceID() int64 { return r.instanceID }
