package loop

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"
)

func startLoop(t *testing.T, clk clock.Clock) *Loop {
	t.Helper()
	l := New(clk, 16)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = l.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})
	return l
}

func TestDoRunsSequentially(t *testing.T) {
	l := startLoop(t, clock.New())

	var order []int
	for i := 0; i < 5; i++ {
		i := i
		test.That(t, l.Post(func() { order = append(order, i) }), test.ShouldBeTrue)
	}
	var seen []int
	test.That(t, l.Do(context.Background(), func() { seen = append(seen, order...) }), test.ShouldBeNil)
	test.That(t, seen, test.ShouldResemble, []int{0, 1, 2, 3, 4})
}

func TestPostAfterStop(t *testing.T) {
	l := New(clock.New(), 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	test.That(t, l.Run(ctx), test.ShouldEqual, context.Canceled)
	test.That(t, l.Post(func() {}), test.ShouldBeFalse)
	test.That(t, l.Do(context.Background(), func() {}), test.ShouldEqual, ErrStopped)
}

func TestEveryAndCancel(t *testing.T) {
	mock := clock.NewMock()
	l := startLoop(t, mock)

	fired := make(chan struct{}, 16)
	var task *Task
	test.That(t, l.Do(context.Background(), func() {
		task = l.Every(time.Second, func() { fired <- struct{}{} })
	}), test.ShouldBeNil)

	for i := 0; i < 3; i++ {
		mock.Add(time.Second)
		select {
		case <-fired:
		case <-time.After(time.Second):
			t.Fatalf("tick %d did not fire", i)
		}
	}

	test.That(t, l.Do(context.Background(), task.Cancel), test.ShouldBeNil)
	test.That(t, task.Cancelled(), test.ShouldBeTrue)
	task.Cancel()

	for i := 0; i < 3; i++ {
		mock.Add(time.Second)
	}
	test.That(t, l.Do(context.Background(), func() {}), test.ShouldBeNil)
	time.Sleep(20 * time.Millisecond)
	test.That(t, len(fired), test.ShouldEqual, 0)
}

func TestCancelDropsQueuedTick(t *testing.T) {
	mock := clock.NewMock()
	l := New(mock, 16)

	calls := 0
	task := l.Every(time.Second, func() { calls++ })
	mock.Add(time.Second)
	// the tick is queued but the loop is not running yet
	time.Sleep(20 * time.Millisecond)
	task.Cancel()

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = l.Run(ctx)
	}()
	test.That(t, l.Do(context.Background(), func() {}), test.ShouldBeNil)
	cancel()
	<-stopped
	test.That(t, calls, test.ShouldEqual, 0)
}

func TestNilTaskCancel(t *testing.T) {
	var task *Task
	task.Cancel()
	test.That(t, task.Cancelled(), test.ShouldBeFalse)
}
