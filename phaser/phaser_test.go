package phaser

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/zeebo/assert"
)

func TestPhaser(t *testing.T) {
	t.Run("EnterExit", func(t *testing.T) {
		p := New()

		t0 := p.WriterCriticalSectionEnter()
		p.WriterCriticalSectionExit(t0)

		p.ReaderLock()
		p.FlipPhase(0)
		p.ReaderUnlock()

		t1 := p.WriterCriticalSectionEnter()
		p.WriterCriticalSectionExit(t1)

		p.ReaderLock()
		p.FlipPhase(0)
		p.ReaderUnlock()
	})

	t.Run("DrainBeforeFlipReturns", func(t *testing.T) {
		p := New()

		var inFlight int64

		enter := func() int64 {
			t := p.WriterCriticalSectionEnter()
			atomic.AddInt64(&inFlight, 1)
			return t
		}
		exit := func(tok int64) {
			atomic.AddInt64(&inFlight, -1)
			p.WriterCriticalSectionExit(tok)
		}

		done := make(chan struct{})
		go func() {
			defer close(done)
			for i := 0; i < 10000; i++ {
				tok := enter()
				exit(tok)
			}
		}()
		<-done

		p.ReaderLock()
		p.FlipPhase(time.Microsecond)
		p.ReaderUnlock()

		assert.Equal(t, atomic.LoadInt64(&inFlight), int64(0))
	})

	t.Run("ManyWritersOneReader", func(t *testing.T) {
		p := New()

		stop := make(chan struct{})
		wg := newChanWaitGroup(4)

		for i := 0; i < wg.n; i++ {
			go func() {
				defer wg.done()
				for {
					select {
					case <-stop:
						return
					default:
					}
					tok := p.WriterCriticalSectionEnter()
					p.WriterCriticalSectionExit(tok)
				}
			}()
		}

		for i := 0; i < 20; i++ {
			p.ReaderLock()
			p.FlipPhase(time.Microsecond)
			p.ReaderUnlock()
		}

		close(stop)
		wg.wait()
	})
}

// chanWaitGroup avoids pulling in sync.WaitGroup just to count done signals,
// matching the minimal style of the rest of the package's tests.
type chanWaitGroup struct {
	n  int
	ch chan struct{}
}

func newChanWaitGroup(n int) *chanWaitGroup {
	return &chanWaitGroup{n: n, ch: make(chan struct{}, n)}
}

func (w *chanWaitGroup) done() { w.ch <- struct{}{} }

func (w *chanWaitGroup) wait() {
	for i := 0; i < w.n; i++ {
		<-w.ch
	}
}

func BenchmarkPhaser(b *testing.B) {
	b.Run("EnterExit", func(b *testing.B) {
		p := New()
		b.ReportAllocs()

		for i := 0; i < b.N; i++ {
			t := p.WriterCriticalSectionEnter()
			p.WriterCriticalSectionExit(t)
		}
	})

	b.Run("EnterExit_Parallel", func(b *testing.B) {
		p := New()
		b.ReportAllocs()

		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				t := p.WriterCriticalSectionEnter()
				p.WriterCriticalSectionExit(t)
			}
		})
	})
}
