package hdrhistogram

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"testing"

	"github.com/zeebo/assert"
)

func TestState(t *testing.T) {
	t.Run("GetStateIsIdempotent", func(t *testing.T) {
		a := GetState("TestState/same")
		b := GetState("TestState/same")
		assert.That(t, a == b)
	})

	t.Run("LookupStateMissing", func(t *testing.T) {
		assert.That(t, LookupState("TestState/never-created") == nil)
	})

	t.Run("StartDone", func(t *testing.T) {
		s := GetState("TestState/startdone")
		s.start()
		assert.Equal(t, s.Current(), int64(1))
		s.done(1000, "")
		assert.Equal(t, s.Current(), int64(0))
		assert.Equal(t, s.Total(), int64(1))
	})

	t.Run("ErrorKinds", func(t *testing.T) {
		s := GetState("TestState/errors")
		s.start()
		s.done(1000, "timeout")
		s.start()
		s.done(2000, "timeout")

		counter := (*int64)(s.Errors().Lookup("timeout"))
		assert.That(t, counter != nil)
		assert.Equal(t, atomic.LoadInt64(counter), int64(2))
	})
}

func BenchmarkGetState(b *testing.B) {
	var sink *State
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		sink = GetState("foo")
	}

	runtime.KeepAlive(sink)
}

func BenchmarkState(b *testing.B) {
	b.Run("StartDone", func(b *testing.B) {
		b.ReportAllocs()

		for i := 0; i < b.N; i++ {
			s := GetState("bench")
			s.start()
			s.done(1, "")
		}
	})

	b.Run("StartDone_Parallel", func(b *testing.B) {
		var n uint64
		b.RunParallel(func(pb *testing.PB) {
			metric := fmt.Sprintf("bench-%d", atomic.AddUint64(&n, 1))
			for pb.Next() {
				s := GetState(metric)
				s.start()
				s.done(1, "")
			}
		})
	})
}
