// Package phaser implements a writer/reader phaser: a synchronization
// primitive that lets any number of writers enter and exit a critical
// section without ever taking a lock, while a single reader can wait
// until every writer that entered before some point in time has exited.
package phaser

import (
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Phaser is a writer/reader phaser. The zero value is not valid; use New.
type Phaser struct {
	startEpoch   int64
	evenEndEpoch int64
	oddEndEpoch  int64
	readerMu     sync.Mutex
}

// New returns a new Phaser in its initial phase.
func New() *Phaser {
	return &Phaser{
		oddEndEpoch: math.MinInt64,
	}
}

// WriterCriticalSectionEnter marks the start of a writer's critical
// section and returns a token that must be passed to
// WriterCriticalSectionExit. It never blocks.
func (p *Phaser) WriterCriticalSectionEnter() int64 {
	return atomic.AddInt64(&p.startEpoch, 1) - 1
}

// WriterCriticalSectionExit marks the end of a writer's critical
// section. t must be the value returned by the matching
// WriterCriticalSectionEnter call.
func (p *Phaser) WriterCriticalSectionExit(t int64) {
	if t < 0 {
		atomic.AddInt64(&p.oddEndEpoch, 1)
	} else {
		atomic.AddInt64(&p.evenEndEpoch, 1)
	}
}

// ReaderLock acquires the reader lock. Only one reader may call
// FlipPhase at a time.
func (p *Phaser) ReaderLock() { p.readerMu.Lock() }

// ReaderUnlock releases the reader lock.
func (p *Phaser) ReaderUnlock() { p.readerMu.Unlock() }

// FlipPhase must be called with the reader lock held. It blocks until
// every writer that entered its critical section before the flip has
// exited, sleeping for sleepInterval between checks (or yielding the
// goroutine if sleepInterval is zero).
func (p *Phaser) FlipPhase(sleepInterval time.Duration) {
	currentIsOdd := atomic.LoadInt64(&p.startEpoch) < 0

	var nextBaseline int64
	closingEndEpoch, nextEndEpoch := &p.evenEndEpoch, &p.oddEndEpoch
	if currentIsOdd {
		closingEndEpoch, nextEndEpoch = &p.oddEndEpoch, &p.evenEndEpoch
		nextBaseline = 0
	} else {
		nextBaseline = math.MinInt64
	}

	// Reset the upcoming phase's end-epoch to its fresh baseline before
	// startEpoch is swapped below, so no writer entering the new phase
	// can exit into a counter still holding a stale value from the
	// phase's previous use two flips ago.
	atomic.StoreInt64(nextEndEpoch, nextBaseline)

	// Swapping (not toggling the sign of) startEpoch gives the closing
	// phase's enter count without carrying forward any prior phase's
	// enters, which a cumulative counter would do.
	startValueAtFlip := atomic.SwapInt64(&p.startEpoch, nextBaseline)

	for atomic.LoadInt64(closingEndEpoch) != startValueAtFlip {
		if sleepInterval > 0 {
			time.Sleep(sleepInterval)
		} else {
			runtime.Gosched()
		}
	}
}
