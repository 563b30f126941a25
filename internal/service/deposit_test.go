package service

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
)

// memReconcileStore 内存实现：用互斥锁模拟数据库的原子 查找+删除+加余额
type memReconcileStore struct {
	mu       sync.Mutex
	pending  map[string]decimal.Decimal // ref -> amount
	balances map[string]decimal.Decimal
	credits  int // 入账次数
}

func newMemStore() *memReconcileStore {
	return &memReconcileStore{
		pending:  make(map[string]decimal.Decimal),
		balances: make(map[string]decimal.Decimal),
	}
}

func (m *memReconcileStore) ConsumeAndCredit(_ context.Context, userID, _ string, ref string, amount decimal.Decimal, _ string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	amt, ok := m.pending[ref]
	if !ok || !amt.Equal(amount) {
		return false, nil
	}
	delete(m.pending, ref)
	m.balances[userID] = m.balances[userID].Add(amount)
	m.credits++
	return true, nil
}

func (m *memReconcileStore) SavePending(_ context.Context, ref string, amount decimal.Decimal, _ string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.pending[ref]; exists {
		return false, nil
	}
	m.pending[ref] = amount
	return true, nil
}

func (m *memReconcileStore) Balance(_ context.Context, userID string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[userID], nil
}

func TestSetDepositAmountValidation(t *testing.T) {
	s := newDepositServiceWithStore(newMemStore())

	for _, bad := range []string{"", "abc", "-5", "0", "1.2.3"} {
		if err := s.SetDepositAmount("u1", bad); err != ErrInvalidAmount {
			t.Fatalf("SetDepositAmount(%q) err = %v, want ErrInvalidAmount", bad, err)
		}
	}

	if err := s.SetDepositAmount("u1", " 500 "); err != nil {
		t.Fatalf("valid amount rejected: %v", err)
	}
	sess, ok := s.Session("u1")
	if !ok || sess.Step != StepAwaitingNotification {
		t.Fatalf("session = %+v ok=%v, want awaiting notification", sess, ok)
	}
	if !sess.Amount.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("session amount = %s, want 500", sess.Amount)
	}
}

func TestBeginDepositOverwritesSession(t *testing.T) {
	s := newDepositServiceWithStore(newMemStore())
	if err := s.SetDepositAmount("u1", "100"); err != nil {
		t.Fatalf("set amount: %v", err)
	}
	s.BeginDeposit("u1")
	sess, ok := s.Session("u1")
	if !ok || sess.Step != StepAwaitingAmount {
		t.Fatalf("begin deposit should reset to awaiting amount, got %+v", sess)
	}
}

func TestReconcileMatchedOnce(t *testing.T) {
	store := newMemStore()
	s := newDepositServiceWithStore(store)
	ctx := context.Background()

	// 先入库一条待匹配通知 (ABC123, 500)
	if stored, err := s.IngestNotification(ctx, "recv ABC123 amount 500 done", "t1"); err != nil || !stored {
		t.Fatalf("ingest: stored=%v err=%v", stored, err)
	}
	// 重复入库应被拒
	if stored, _ := s.IngestNotification(ctx, "recv ABC123 amount 500 done", "t2"); stored {
		t.Fatal("duplicate notification should not be stored twice")
	}

	if err := s.SetDepositAmount("u1", "500"); err != nil {
		t.Fatalf("set amount: %v", err)
	}

	out, err := s.OnIncomingText(ctx, "u1", "User One", "Amt: 500 Ref ABC123", "t3")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !out.Matched || !out.Amount.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("want Matched(500), got %+v", out)
	}
	bal, _ := s.Balance(ctx, "u1")
	if !bal.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("balance = %s, want 500", bal)
	}
	// 成功后会话被清掉
	if _, ok := s.Session("u1"); ok {
		t.Fatal("session should be cleared after a matched reconcile")
	}

	// 同样的文本再来一次：通知已消费，必须是 NoMatch 且不再入账
	out2, err := s.OnIncomingText(ctx, "u1", "User One", "Amt: 500 Ref ABC123", "t4")
	if err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	if out2.Matched {
		t.Fatal("second identical text must be NoMatch")
	}
	if store.credits != 1 {
		t.Fatalf("credits = %d, want exactly 1", store.credits)
	}
}

func TestReconcileNoMatchLeavesStateUntouched(t *testing.T) {
	store := newMemStore()
	s := newDepositServiceWithStore(store)
	ctx := context.Background()

	if err := s.SetDepositAmount("u1", "500"); err != nil {
		t.Fatalf("set amount: %v", err)
	}

	// 抽不出参考号/金额的文本
	out, err := s.OnIncomingText(ctx, "u1", "User One", "hello there", "t1")
	if err != nil || out.Matched {
		t.Fatalf("plain text should be NoMatch, got %+v err=%v", out, err)
	}
	// 抽得出来但没有对应通知
	out, err = s.OnIncomingText(ctx, "u1", "User One", "Amt: 500 Ref NOPE99", "t2")
	if err != nil || out.Matched {
		t.Fatalf("unknown ref should be NoMatch, got %+v err=%v", out, err)
	}
	if store.credits != 0 {
		t.Fatalf("credits = %d, want 0", store.credits)
	}
	// 会话保持不动，等下一条消息重试
	if _, ok := s.Session("u1"); !ok {
		t.Fatal("session must survive a NoMatch")
	}
}

func TestConcurrentReconcileCreditsExactlyOnce(t *testing.T) {
	store := newMemStore()
	s := newDepositServiceWithStore(store)
	ctx := context.Background()

	if _, err := s.IngestNotification(ctx, "Paid 2,000 ref QX71ZZ9 ok", "t0"); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	const workers = 16
	var wg sync.WaitGroup
	matched := make(chan decimal.Decimal, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := s.OnIncomingText(ctx, "u1", "User One", "Paid 2,000 ref QX71ZZ9 ok", "tc")
			if err != nil {
				t.Errorf("reconcile: %v", err)
				return
			}
			if out.Matched {
				matched <- out.Amount
			}
		}()
	}
	wg.Wait()
	close(matched)

	var wins int
	for amt := range matched {
		wins++
		if !amt.Equal(decimal.NewFromInt(2000)) {
			t.Fatalf("matched amount = %s, want 2000", amt)
		}
	}
	if wins != 1 {
		t.Fatalf("matched count = %d, want exactly 1", wins)
	}
	if store.credits != 1 {
		t.Fatalf("credits = %d, want exactly 1", store.credits)
	}
	bal, _ := s.Balance(ctx, "u1")
	if !bal.Equal(decimal.NewFromInt(2000)) {
		t.Fatalf("total credited = %s, want 2000 exactly once", bal)
	}
}
