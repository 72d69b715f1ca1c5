package dispose

import (
	"context"
	"errors"
	"testing"
	"time"
)

// TestNewDispose 测试 NewDispose 工厂函数
func TestNewDispose(t *testing.T) {
	called := false
	d := NewDispose(context.Background(), func() error {
		called = true
		return nil
	})

	if d == nil {
		t.Fatal("NewDispose returned nil")
	}
	if d.Ctx() == nil {
		t.Error("context should be bound after construction")
	}
	if d.IsClosed() {
		t.Error("fresh Dispose must not report closed")
	}

	result := d.Close()
	if result.HasErrors() {
		t.Errorf("clean close reported errors: %v", result.Error())
	}
	if !result.ActualDisposal {
		t.Error("first close should perform the actual disposal")
	}
	if !called {
		t.Error("onClose callback was not invoked")
	}
	if !d.IsClosed() {
		t.Error("Dispose should report closed after Close")
	}
}

// TestNewDisposeWithNoOp 测试无回调的构造
func TestNewDisposeWithNoOp(t *testing.T) {
	d := NewDisposeWithNoOp(context.Background())

	if d == nil {
		t.Fatal("NewDisposeWithNoOp returned nil")
	}
	if d.Ctx() == nil {
		t.Error("context should be bound after construction")
	}
	if result := d.Close(); result.HasErrors() {
		t.Errorf("no-op close reported errors: %v", result.Error())
	}
}

// TestDisposeSetCtxOnce 测试 SetCtx 只生效一次
func TestDisposeSetCtxOnce(t *testing.T) {
	d := &Dispose{}
	ctx := context.Background()

	d.SetCtx(ctx, nil)
	if d.Ctx() == nil {
		t.Error("context should be set after first SetCtx")
	}

	// 重复调用被忽略，不触发 panic
	d.SetCtx(ctx, nil)
}

// TestDisposeHandlerOrder 测试清理处理器按注册顺序执行
func TestDisposeHandlerOrder(t *testing.T) {
	order := make([]int, 0, 3)

	d := NewDispose(context.Background(), func() error {
		order = append(order, 1)
		return nil
	})
	d.AddCleanHandler(func() error {
		order = append(order, 2)
		return nil
	})
	d.AddCleanHandler(func() error {
		order = append(order, 3)
		return nil
	})

	d.Close()

	if len(order) != 3 {
		t.Fatalf("expected 3 handlers to run, got %d", len(order))
	}
	for i, got := range order {
		if got != i+1 {
			t.Errorf("handler order mismatch at %d: got %d", i, got)
		}
	}
}

// TestDisposeCollectsHandlerErrors 测试处理器错误的收集与重取
func TestDisposeCollectsHandlerErrors(t *testing.T) {
	boom := errors.New("cleanup error")
	d := NewDispose(context.Background(), func() error {
		return boom
	})

	result := d.Close()
	if !result.HasErrors() {
		t.Fatal("close should surface the handler error")
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 error, got %d", len(result.Errors))
	}
	if result.Errors[0].Err != boom {
		t.Errorf("expected %v, got %v", boom, result.Errors[0].Err)
	}

	// 已记录的错误可通过 GetErrors 重新获取
	recorded := d.GetErrors()
	if len(recorded) != 1 || recorded[0].Err != boom {
		t.Errorf("GetErrors should return recorded errors, got %v", recorded)
	}

	// 重复 Close 返回同一批错误，不再执行处理器
	second := d.Close()
	if len(second.Errors) != 1 {
		t.Errorf("second close should carry recorded errors, got %d", len(second.Errors))
	}
}

// TestDisposeErrorDoesNotAbortSiblings 测试单个处理器失败不影响其余处理器
func TestDisposeErrorDoesNotAbortSiblings(t *testing.T) {
	ran := make([]string, 0)

	d := NewDisposeWithNoOp(context.Background())
	d.AddCleanHandler(func() error {
		ran = append(ran, "first")
		return errors.New("first failed")
	})
	d.AddCleanHandler(func() error {
		ran = append(ran, "second")
		return nil
	})

	result := d.Close()

	if len(ran) != 2 {
		t.Errorf("expected both handlers to run, got %v", ran)
	}
	if len(result.Errors) != 1 {
		t.Errorf("expected 1 error collected, got %d", len(result.Errors))
	}
}

// TestDisposeContextCancellation 测试上下文取消触发清理
func TestDisposeContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	called := make(chan bool, 1)

	d := NewDispose(ctx, func() error {
		called <- true
		return nil
	})

	cancel()

	select {
	case <-called:
	case <-time.After(time.Second):
		t.Error("onClose should run when the context is cancelled")
	}

	// 等待后台 goroutine 标记关闭完成
	deadline := time.Now().Add(time.Second)
	for !d.IsClosed() {
		if time.Now().After(deadline) {
			t.Fatal("Dispose should report closed after context cancellation")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// TestDisposeCloseIdempotent 测试 Close 幂等
func TestDisposeCloseIdempotent(t *testing.T) {
	callCount := 0
	d := NewDispose(context.Background(), func() error {
		callCount++
		return nil
	})

	d.Close()
	second := d.Close()
	d.Close()

	if callCount != 1 {
		t.Errorf("onClose should run exactly once, ran %d times", callCount)
	}
	if second.ActualDisposal {
		t.Error("repeat close must not report actual disposal")
	}
}

// TestDisposeCloseWithError 测试 CloseWithError 返回首个错误
func TestDisposeCloseWithError(t *testing.T) {
	boom := errors.New("cleanup error")
	d := NewDispose(context.Background(), func() error {
		return boom
	})

	err := d.CloseWithError()
	if err == nil {
		t.Fatal("CloseWithError should return the handler error")
	}
	if err != boom {
		t.Errorf("expected %v, got %v", boom, err)
	}
}

// TestBaseConstructors 测试 ServiceBase 与 ManagerBase 构造
func TestBaseConstructors(t *testing.T) {
	type base interface {
		GetName() string
		Ctx() context.Context
		CloseWithError() error
	}

	cases := []struct {
		name string
		mk   func() base
	}{
		{"TestService", func() base { return NewService("TestService", context.Background()) }},
		{"TestManager", func() base { return NewManager("TestManager", context.Background()) }},
	}

	for _, tc := range cases {
		b := tc.mk()
		if b.GetName() != tc.name {
			t.Errorf("expected name %q, got %q", tc.name, b.GetName())
		}
		if b.Ctx() == nil {
			t.Errorf("%s: context should be bound", tc.name)
		}
		if err := b.CloseWithError(); err != nil {
			t.Errorf("%s: close failed: %v", tc.name, err)
		}
	}
}
