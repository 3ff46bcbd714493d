package hdrhistogram

import (
	"testing"

	"github.com/zeebo/assert"
)

func TestTime(t *testing.T) {
	t.Run("Basic", func(t *testing.T) {
		StartNamed("TestTime/Basic/foo").Stop(nil)

		Times(func(name string, state *State) bool {
			if name != "TestTime/Basic/foo" {
				return true
			}
			assert.Equal(t, state.Total(), int64(1))
			return true
		})

		StartNamed("TestTime/Basic/foo").Stop(nil)

		Times(func(name string, state *State) bool {
			if name != "TestTime/Basic/foo" {
				return true
			}
			assert.Equal(t, state.Total(), int64(2))
			return true
		})

		StartNamed("TestTime/Basic/bar").Stop(nil)

		Times(func(name string, state *State) bool {
			switch name {
			case "TestTime/Basic/foo":
				assert.Equal(t, state.Total(), int64(2))
			case "TestTime/Basic/bar":
				assert.Equal(t, state.Total(), int64(1))
			}
			return true
		})
	})

	t.Run("ErrorKind", func(t *testing.T) {
		err := errKindError("boom")

		func() {
			var rerr error = err
			defer StartNamed("TestTime/ErrorKind").Stop(&rerr)
		}()

		s := LookupState("TestTime/ErrorKind")
		assert.That(t, s != nil)
		counter := (*int64)(s.Errors().Lookup("boom"))
		assert.That(t, counter != nil)
	})
}

type errKindError string

func (e errKindError) Error() string { return string(e) + ": boom happened" }

func BenchmarkTime(b *testing.B) {
	b.Run("Auto", func(b *testing.B) {
		b.ReportAllocs()

		for i := 0; i < b.N; i++ {
			func() { defer Start().Stop(nil) }()
		}
	})

	b.Run("Named", func(b *testing.B) {
		b.ReportAllocs()

		for i := 0; i < b.N; i++ {
			func() { defer StartNamed("bench").Stop(nil) }()
		}
	})

	b.Run("NoDefer", func(b *testing.B) {
		b.ReportAllocs()

		for i := 0; i < b.N; i++ {
			timer := StartNamed("bench")
			timer.Stop(nil)
		}
	})

	b.Run("ThunkNoDefer", func(b *testing.B) {
		b.ReportAllocs()
		var thunk Thunk

		for i := 0; i < b.N; i++ {
			timer := thunk.Start()
			timer.Stop(nil)
		}
	})
}
