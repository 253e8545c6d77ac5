package fn

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestResultOkErr(t *testing.T) {
	r := Ok(42)
	if !r.IsOk() || r.IsErr() {
		t.Fatal("expected ok")
	}
	v, err := r.Unwrap()
	if v != 42 || err != nil {
		t.Fatalf("unexpected unwrap: %v %v", v, err)
	}

	boom := errors.New("boom")
	e := Err[int](boom)
	if e.IsOk() || !e.IsErr() {
		t.Fatal("expected err")
	}
	if _, err := e.Unwrap(); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestResultUnwrapOr(t *testing.T) {
	if got := Ok(7).UnwrapOr(0); got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
	if got := Errf[int]("nope").UnwrapOr(9); got != 9 {
		t.Fatalf("expected fallback 9, got %d", got)
	}
}

func TestResultMustPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	Err[string](errors.New("bad")).Must()
}

func TestResultMapAndThen(t *testing.T) {
	r := Ok(2).Map(func(v int) int { return v * 3 }).
		AndThen(func(v int) Result[int] { return Ok(v + 1) })
	if v, _ := r.Unwrap(); v != 7 {
		t.Fatalf("expected 7, got %d", v)
	}

	e := Err[int](errors.New("skip")).Map(func(v int) int {
		t.Fatal("Map should not run on err")
		return v
	})
	if e.IsOk() {
		t.Fatal("expected err to propagate")
	}
}

func TestMapResult(t *testing.T) {
	r := MapResult(Ok(3), func(v int) string {
		if v == 3 {
			return "three"
		}
		return ""
	})
	if v, _ := r.Unwrap(); v != "three" {
		t.Fatalf("unexpected %q", v)
	}
}

func TestFromPair(t *testing.T) {
	if r := FromPair(1, error(nil)); !r.IsOk() {
		t.Fatal("expected ok")
	}
	if r := FromPair(0, errors.New("x")); !r.IsErr() {
		t.Fatal("expected err")
	}
}

func TestCollect(t *testing.T) {
	ok := Collect([]Result[int]{Ok(1), Ok(2), Ok(3)})
	if vs, _ := ok.Unwrap(); len(vs) != 3 || vs[2] != 3 {
		t.Fatalf("unexpected %v", vs)
	}

	boom := errors.New("boom")
	bad := Collect([]Result[int]{Ok(1), Err[int](boom)})
	if _, err := bad.Unwrap(); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	r := Retry(context.Background(), RetryOpts{MaxAttempts: 3, InitialWait: time.Millisecond},
		func(context.Context) Result[string] {
			calls++
			if calls < 3 {
				return Errf[string]("transient")
			}
			return Ok("done")
		})
	if v, _ := r.Unwrap(); v != "done" {
		t.Fatalf("expected done, got %v", v)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetryExhausted(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	r := Retry(context.Background(), RetryOpts{MaxAttempts: 2, InitialWait: time.Millisecond},
		func(context.Context) Result[int] {
			calls++
			return Err[int](boom)
		})
	if _, err := r.Unwrap(); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := Retry(ctx, RetryOpts{MaxAttempts: 5, InitialWait: time.Hour},
		func(context.Context) Result[int] { return Errf[int]("keep going") })
	if _, err := r.Unwrap(); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestThenShortCircuits(t *testing.T) {
	boom := errors.New("boom")
	first := func(context.Context, int) Result[int] { return Err[int](boom) }
	second := func(context.Context, int) Result[int] {
		t.Fatal("second stage should not run")
		return Ok(0)
	}
	r := Then(first, second)(context.Background(), 1)
	if _, err := r.Unwrap(); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestPipelineComposes(t *testing.T) {
	double := MapStage(func(v int) int { return v * 2 })
	inc := MapStage(func(v int) int { return v + 1 })
	r := Pipeline(double, inc, double)(context.Background(), 3)
	if v, _ := r.Unwrap(); v != 14 {
		t.Fatalf("expected 14, got %d", v)
	}
}

func TestTapStagePassesThrough(t *testing.T) {
	var seen int
	tap := TapStage(func(_ context.Context, v int) { seen = v })
	r := tap(context.Background(), 5)
	if v, _ := r.Unwrap(); v != 5 || seen != 5 {
		t.Fatalf("unexpected v=%d seen=%d", v, seen)
	}
}

func TestTracedStagePropagatesError(t *testing.T) {
	boom := errors.New("boom")
	stage := TracedStage("test.stage", func(context.Context, int) Result[int] {
		return Err[int](boom)
	})
	if _, err := stage(context.Background(), 1).Unwrap(); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestRetryStage(t *testing.T) {
	calls := 0
	stage := RetryStage(RetryOpts{MaxAttempts: 2, InitialWait: time.Millisecond},
		func(context.Context, int) Result[int] {
			calls++
			if calls == 1 {
				return Errf[int]("first")
			}
			return Ok(calls)
		})
	if v, _ := stage(context.Background(), 0).Unwrap(); v != 2 {
		t.Fatalf("expected 2, got %d", v)
	}
}

func TestSliceHelpers(t *testing.T) {
	in := []int{1, 2, 2, 3, 4}

	if got := Map(in, func(v int) int { return v * 10 }); got[4] != 40 {
		t.Fatalf("Map: %v", got)
	}
	if got := Filter(in, func(v int) bool { return v%2 == 0 }); len(got) != 3 {
		t.Fatalf("Filter: %v", got)
	}
	if got := FilterMap(in, func(v int) (int, bool) { return v * 2, v > 2 }); len(got) != 2 || got[0] != 6 {
		t.Fatalf("FilterMap: %v", got)
	}
	if got := Reduce(in, 0, func(acc, v int) int { return acc + v }); got != 12 {
		t.Fatalf("Reduce: %d", got)
	}
	if got := Unique(in); len(got) != 4 {
		t.Fatalf("Unique: %v", got)
	}
	if got := FlatMap([]int{1, 2}, func(v int) []int { return []int{v, v} }); len(got) != 4 {
		t.Fatalf("FlatMap: %v", got)
	}
}

func TestGroupBy(t *testing.T) {
	groups := GroupBy([]string{"ant", "bee", "ape"}, func(s string) byte { return s[0] })
	if len(groups['a']) != 2 || len(groups['b']) != 1 {
		t.Fatalf("unexpected groups: %v", groups)
	}
}

func TestChunk(t *testing.T) {
	chunks := Chunk([]int{1, 2, 3, 4, 5}, 2)
	if len(chunks) != 3 || len(chunks[2]) != 1 {
		t.Fatalf("unexpected chunks: %v", chunks)
	}
	if Chunk([]int{1}, 0) != nil {
		t.Fatal("expected nil for n<=0")
	}
}

func TestUniqueBy(t *testing.T) {
	type row struct{ id string }
	rows := []row{{"a"}, {"b"}, {"a"}}
	if got := UniqueBy(rows, func(r row) string { return r.id }); len(got) != 2 {
		t.Fatalf("UniqueBy: %v", got)
	}
}
