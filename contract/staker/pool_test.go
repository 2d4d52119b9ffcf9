package staker

import (
	"context"
	"errors"
	"github.com/davecgh/go-spew/spew"
	"github.com/ssbcStaker/event"
	"github.com/ssbcStaker/meta"
	"github.com/ssbcStaker/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"math/big"
	"sync"
	"testing"
	"time"
)

const (
	alice = "0x00000000000000000000000000000000000A11CE"
	bob   = "0x0000000000000000000000000000000000000B0B"
)

var start = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// 受益合约，记录收到的金额，可以设置为拒绝转账
type fakeBeneficiary struct {
	mu        sync.Mutex
	received  *big.Int
	calls     int
	reject    error
	onReceive func()
}

func (b *fakeBeneficiary) Receive(_ context.Context, _ string, amount *big.Int) error {
	if b.onReceive != nil {
		b.onReceive()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.reject != nil {
		return b.reject
	}
	if b.received == nil {
		b.received = new(big.Int)
	}
	b.received.Add(b.received, amount)
	return nil
}

func (b *fakeBeneficiary) completed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.received != nil
}

type fakePayer struct {
	mu    sync.Mutex
	paid  map[string]*big.Int
	fail  error
	onPay func(to string)
}

func (p *fakePayer) Pay(_ context.Context, to string, amount *big.Int) error {
	if p.onPay != nil {
		p.onPay(to)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	if p.paid == nil {
		p.paid = map[string]*big.Int{}
	}
	if _, ok := p.paid[to]; !ok {
		p.paid[to] = new(big.Int)
	}
	p.paid[to].Add(p.paid[to], amount)
	return nil
}

type failingLog struct{}

func (failingLog) Append(context.Context, meta.StakeEvent) (meta.StakeEvent, error) {
	return meta.StakeEvent{}, errors.New("disk full")
}

func ether(t *testing.T, s string) *big.Int {
	v, err := util.ParseEther(s)
	require.NoError(t, err)
	return v
}

type fixture struct {
	pool        *Pool
	beneficiary *fakeBeneficiary
	payer       *fakePayer
	log         *event.MemoryLog
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		beneficiary: &fakeBeneficiary{},
		payer:       &fakePayer{},
		log:         event.NewMemoryLog(),
	}
	p, err := New(Config{
		Address:     "0xpool",
		Threshold:   ether(t, "1"),
		Duration:    30 * time.Second,
		Beneficiary: f.beneficiary,
		Payer:       f.payer,
		Log:         f.log,
	}, start)
	require.NoError(t, err)
	f.pool = p
	return f
}

func sum(m map[string]*big.Int) *big.Int {
	total := new(big.Int)
	for _, v := range m {
		total.Add(total, v)
	}
	return total
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	good := Config{Threshold: big.NewInt(1), Duration: time.Second, Beneficiary: &fakeBeneficiary{}, Payer: &fakePayer{}, Log: event.NewMemoryLog()}

	bad := good
	bad.Threshold = big.NewInt(-1)
	_, err := New(bad, start)
	require.ErrorIs(t, err, ErrInvalidConfig)

	bad = good
	bad.Duration = 0
	_, err = New(bad, start)
	require.ErrorIs(t, err, ErrInvalidConfig)

	bad = good
	bad.Beneficiary = nil
	_, err = New(bad, start)
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(good, start)
	require.NoError(t, err)
}

func TestDepositTracksBalancesAndEmitsStake(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	e, err := f.pool.Deposit(ctx, alice, ether(t, "0.5"), start)
	require.NoError(t, err)
	require.Equal(t, alice, e.Staker)
	require.Equal(t, ether(t, "0.5").String(), e.Amount.String())
	require.Equal(t, uint64(0), e.Seq)
	require.Equal(t, "0xpool", e.Contract)

	_, err = f.pool.Deposit(ctx, alice, ether(t, "0.25"), start.Add(time.Second))
	require.NoError(t, err)
	_, err = f.pool.Deposit(ctx, bob, ether(t, "0.1"), start.Add(2*time.Second))
	require.NoError(t, err)

	require.Equal(t, ether(t, "0.75").String(), f.pool.BalanceOf(alice).String())
	require.Equal(t, ether(t, "0.1").String(), f.pool.BalanceOf(bob).String())
	require.Equal(t, 0, f.pool.Held().Cmp(sum(f.pool.Balances())))

	logs, _ := f.log.Range(ctx, 0, 10)
	require.Equal(t, 3, len(logs))
	require.Equal(t, bob, logs[2].Staker)
}

func TestDepositRejectsZeroAmount(t *testing.T) {
	f := newFixture(t)
	_, err := f.pool.Deposit(context.Background(), alice, big.NewInt(0), start)
	require.ErrorIs(t, err, ErrZeroAmount)
	_, err = f.pool.Deposit(context.Background(), alice, nil, start)
	require.ErrorIs(t, err, ErrZeroAmount)
	require.Equal(t, 0, f.pool.Held().Sign())
}

func TestDepositAfterDeadline(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.pool.Deposit(ctx, alice, ether(t, "0.5"), start)
	require.NoError(t, err)

	deadline := f.pool.Deadline()
	for _, now := range []time.Time{deadline, deadline.Add(time.Nanosecond), deadline.Add(31 * time.Second)} {
		_, err := f.pool.Deposit(ctx, alice, ether(t, "0.1"), now)
		require.ErrorIs(t, err, ErrDeadlinePassed)
	}
	require.Equal(t, ether(t, "0.5").String(), f.pool.BalanceOf(alice).String())
	n, _ := f.log.Len(ctx)
	require.Equal(t, uint64(1), n)

	_, err = f.pool.Deposit(ctx, alice, ether(t, "0.1"), deadline.Add(-time.Nanosecond))
	require.NoError(t, err)
}

func TestDepositLeavesLedgerWhenLogFails(t *testing.T) {
	p, err := New(Config{
		Threshold:   big.NewInt(1),
		Duration:    time.Minute,
		Beneficiary: &fakeBeneficiary{},
		Payer:       &fakePayer{},
		Log:         failingLog{},
	}, start)
	require.NoError(t, err)
	_, err = p.Deposit(context.Background(), alice, big.NewInt(5), start)
	require.ErrorContains(t, err, "disk full")
	require.Equal(t, 0, p.BalanceOf(alice).Sign())
	require.Equal(t, 0, p.Held().Sign())
}

func TestTimeLeft(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, 30*time.Second, f.pool.TimeLeft(start))

	prev := f.pool.TimeLeft(start)
	for i := 1; i < 30; i++ {
		cur := f.pool.TimeLeft(start.Add(time.Duration(i) * time.Second))
		require.True(t, cur < prev)
		require.True(t, cur > 0)
		prev = cur
	}
	require.Equal(t, time.Duration(0), f.pool.TimeLeft(start.Add(30*time.Second)))
	require.Equal(t, time.Duration(0), f.pool.TimeLeft(start.Add(35*time.Second)))
	require.Equal(t, time.Duration(0), f.pool.TimeLeft(start.Add(time.Hour)))
}

func TestExecuteBeforeDeadline(t *testing.T) {
	f := newFixture(t)
	_, err := f.pool.Execute(context.Background(), start.Add(29*time.Second))
	require.ErrorIs(t, err, ErrDeadlineNotReached)
	require.False(t, f.pool.Executed())
	require.Equal(t, meta.PhaseOpen, f.pool.Phase(start))
}

// 两个参与者质押0.5和0.6，达到阈值后全部转给受益合约
func TestExecuteForwardsWhenThresholdMet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.pool.Deposit(ctx, alice, ether(t, "0.5"), start)
	require.NoError(t, err)
	_, err = f.pool.Deposit(ctx, bob, ether(t, "0.6"), start)
	require.NoError(t, err)

	after := start.Add(31 * time.Second)
	require.Equal(t, meta.PhaseClosed, f.pool.Phase(after))

	res, err := f.pool.Execute(ctx, after)
	require.NoError(t, err)
	require.Equal(t, meta.PhaseFunded, res.Phase)
	require.Equal(t, ether(t, "1.1").String(), res.Forwarded.String())
	require.True(t, f.beneficiary.completed())
	require.Equal(t, ether(t, "1.1").String(), f.beneficiary.received.String())
	require.False(t, f.pool.OpenForWithdraw())
	require.Equal(t, 0, f.pool.Held().Sign())
	require.Equal(t, meta.PhaseFunded, f.pool.Phase(after))

	_, err = f.pool.Withdraw(ctx, alice)
	require.ErrorIs(t, err, ErrWithdrawalsNotOpen)

	_, err = f.pool.Execute(ctx, after)
	require.ErrorIs(t, err, ErrAlreadyExecuted)
	require.Equal(t, 1, f.beneficiary.calls)
}

func TestExecuteExactlyAtThreshold(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.pool.Deposit(ctx, alice, ether(t, "1"), start)
	require.NoError(t, err)
	res, err := f.pool.Execute(ctx, f.pool.Deadline())
	require.NoError(t, err)
	require.Equal(t, meta.PhaseFunded, res.Phase)
}

// 质押0.5未达阈值，执行后开放提现，取回0.5
func TestExecuteOpensWithdrawBelowThreshold(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.pool.Deposit(ctx, alice, ether(t, "0.5"), start)
	require.NoError(t, err)

	_, err = f.pool.Withdraw(ctx, alice)
	require.ErrorIs(t, err, ErrWithdrawalsNotOpen)

	after := start.Add(31 * time.Second)
	res, err := f.pool.Execute(ctx, after)
	require.NoError(t, err)
	require.Equal(t, meta.PhaseRefundable, res.Phase)
	require.Equal(t, 0, res.Forwarded.Sign())
	require.True(t, f.pool.OpenForWithdraw())
	require.Equal(t, 0, f.beneficiary.calls)
	require.Equal(t, ether(t, "0.5").String(), f.pool.BalanceOf(alice).String())

	got, err := f.pool.Withdraw(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, ether(t, "0.5").String(), got.String())
	require.Equal(t, ether(t, "0.5").String(), f.payer.paid[alice].String())
	require.Equal(t, 0, f.pool.BalanceOf(alice).Sign())
	require.Equal(t, 0, f.pool.Held().Sign())

	_, err = f.pool.Withdraw(ctx, alice)
	require.ErrorIs(t, err, ErrNothingToWithdraw)
	_, err = f.pool.Withdraw(ctx, bob)
	require.ErrorIs(t, err, ErrNothingToWithdraw)

	_, err = f.pool.Execute(ctx, after)
	require.ErrorIs(t, err, ErrAlreadyExecuted)
}

func TestWithdrawIsPerParticipant(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, _ = f.pool.Deposit(ctx, alice, ether(t, "0.3"), start)
	_, _ = f.pool.Deposit(ctx, bob, ether(t, "0.2"), start)
	_, err := f.pool.Execute(ctx, start.Add(time.Minute))
	require.NoError(t, err)

	a, err := f.pool.Withdraw(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, ether(t, "0.3").String(), a.String())
	require.Equal(t, ether(t, "0.2").String(), f.pool.BalanceOf(bob).String())
	require.Equal(t, 0, f.pool.Held().Cmp(sum(f.pool.Balances())))

	b, err := f.pool.Withdraw(ctx, bob)
	require.NoError(t, err)
	require.Equal(t, ether(t, "0.2").String(), b.String())
	require.Equal(t, 0, f.pool.Held().Sign())
}

func TestForwardFailureIsRetryable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, _ = f.pool.Deposit(ctx, alice, ether(t, "2"), start)
	f.beneficiary.reject = errors.New("rejected")

	after := start.Add(time.Minute)
	_, err := f.pool.Execute(ctx, after)
	require.ErrorIs(t, err, ErrForwardFailed)
	require.ErrorContains(t, err, "rejected")
	require.False(t, f.pool.Executed())
	require.False(t, f.pool.OpenForWithdraw())
	require.Equal(t, ether(t, "2").String(), f.pool.Held().String())
	require.Equal(t, meta.PhaseClosed, f.pool.Phase(after))

	f.beneficiary.reject = nil
	res, err := f.pool.Execute(ctx, after)
	require.NoError(t, err)
	require.Equal(t, ether(t, "2").String(), res.Forwarded.String())
	require.Equal(t, 2, f.beneficiary.calls)
	require.Equal(t, ether(t, "2").String(), f.beneficiary.received.String())
}

func TestReentrantExecuteIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, _ = f.pool.Deposit(ctx, alice, ether(t, "1"), start)
	after := start.Add(time.Minute)

	var inner error
	f.beneficiary.onReceive = func() {
		_, inner = f.pool.Execute(ctx, after)
	}
	_, err := f.pool.Execute(ctx, after)
	require.NoError(t, err)
	require.ErrorIs(t, inner, ErrExecutionInProgress)
	require.Equal(t, 1, f.beneficiary.calls)
}

func TestDepositDuringForwardIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, _ = f.pool.Deposit(ctx, alice, ether(t, "1.1"), start)

	// 转账进行中，调用方持有的时间早于截止时间
	var late error
	f.beneficiary.onReceive = func() {
		_, late = f.pool.Deposit(ctx, bob, ether(t, "0.3"), start.Add(29*time.Second))
	}
	res, err := f.pool.Execute(ctx, start.Add(31*time.Second))
	require.NoError(t, err)
	require.Equal(t, meta.PhaseFunded, res.Phase)
	require.ErrorIs(t, late, ErrDeadlinePassed)
	require.Equal(t, 0, f.pool.Held().Sign())
	require.Equal(t, 0, f.pool.BalanceOf(bob).Sign())
	n, _ := f.log.Len(ctx)
	require.Equal(t, uint64(1), n)
}

func TestDepositAfterExecuteIsRejected(t *testing.T) {
	ctx := context.Background()
	for name, stake := range map[string]string{"funded": "1", "refundable": "0.2"} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			_, _ = f.pool.Deposit(ctx, alice, ether(t, stake), start)
			_, err := f.pool.Execute(ctx, start.Add(time.Minute))
			require.NoError(t, err)
			held := f.pool.Held()

			_, err = f.pool.Deposit(ctx, bob, ether(t, "0.5"), start.Add(time.Second))
			require.ErrorIs(t, err, ErrDeadlinePassed)
			require.Equal(t, held.String(), f.pool.Held().String())
			require.Equal(t, 0, f.pool.BalanceOf(bob).Sign())
		})
	}
}

func TestDepositNowReadsClockUnderLock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	calls := 0
	clock := func() time.Time {
		calls++
		return start.Add(10 * time.Second)
	}
	e, err := f.pool.DepositNow(ctx, alice, ether(t, "0.1"), clock)
	require.NoError(t, err)
	require.Equal(t, 1, calls)
	require.True(t, e.Timestamp.Equal(start.Add(10*time.Second)))

	_, err = f.pool.Execute(ctx, start.Add(time.Minute))
	require.NoError(t, err)
	// 已执行时直接拒绝，不再读取时间
	_, err = f.pool.DepositNow(ctx, alice, ether(t, "0.1"), clock)
	require.ErrorIs(t, err, ErrDeadlinePassed)
	require.Equal(t, 1, calls)
}

func TestReentrantWithdrawCannotDrain(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, _ = f.pool.Deposit(ctx, alice, ether(t, "0.4"), start)
	_, _ = f.pool.Deposit(ctx, bob, ether(t, "0.4"), start)
	_, err := f.pool.Execute(ctx, start.Add(time.Minute))
	require.NoError(t, err)

	var inner error
	calls := 0
	f.payer.onPay = func(to string) {
		calls++
		if calls == 1 {
			_, inner = f.pool.Withdraw(ctx, to)
		}
	}
	_, err = f.pool.Withdraw(ctx, alice)
	require.NoError(t, err)
	require.ErrorIs(t, inner, ErrNothingToWithdraw)
	require.Equal(t, ether(t, "0.4").String(), f.payer.paid[alice].String())
	require.Equal(t, ether(t, "0.4").String(), f.pool.BalanceOf(bob).String())
}

func TestWithdrawTransferFailureRestoresBalance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, _ = f.pool.Deposit(ctx, alice, ether(t, "0.5"), start)
	_, err := f.pool.Execute(ctx, start.Add(time.Minute))
	require.NoError(t, err)

	f.payer.fail = errors.New("account locked")
	_, err = f.pool.Withdraw(ctx, alice)
	require.ErrorIs(t, err, ErrTransferFailed)
	require.Equal(t, ether(t, "0.5").String(), f.pool.BalanceOf(alice).String())
	require.Equal(t, ether(t, "0.5").String(), f.pool.Held().String())

	f.payer.fail = nil
	got, err := f.pool.Withdraw(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, ether(t, "0.5").String(), got.String())
}

func TestExecuteEmptyPoolWithZeroThreshold(t *testing.T) {
	b := &fakeBeneficiary{}
	p, err := New(Config{Threshold: new(big.Int), Duration: time.Second, Beneficiary: b, Payer: &fakePayer{}, Log: event.NewMemoryLog()}, start)
	require.NoError(t, err)
	res, err := p.Execute(context.Background(), start.Add(time.Second))
	require.NoError(t, err)
	require.Equal(t, meta.PhaseFunded, res.Phase)
	require.Equal(t, 1, b.calls)
}

func TestConcurrentDeposits(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			who := alice
			if i%2 == 1 {
				who = bob
			}
			_, err := f.pool.Deposit(ctx, who, big.NewInt(int64(i+1)), start)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	require.Equal(t, "1275", f.pool.Held().String())
	require.Equal(t, 0, f.pool.Held().Cmp(sum(f.pool.Balances())))
	n, _ := f.log.Len(ctx)
	require.Equal(t, uint64(50), n)
}

func TestSnapshotRestore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, _ = f.pool.Deposit(ctx, alice, ether(t, "0.5"), start)
	_, err := f.pool.Execute(ctx, start.Add(time.Minute))
	require.NoError(t, err)

	state := f.pool.Snapshot()
	t.Log(spew.Sdump(state))

	restored, err := Restore(Config{Beneficiary: f.beneficiary, Payer: f.payer, Log: f.log}, state)
	require.NoError(t, err)
	require.Equal(t, f.pool.Deadline(), restored.Deadline())
	require.True(t, restored.OpenForWithdraw())
	require.Equal(t, ether(t, "0.5").String(), restored.BalanceOf(alice).String())
	require.Equal(t, ether(t, "1").String(), restored.Threshold().String())

	_, err = restored.Execute(ctx, start.Add(time.Hour))
	require.ErrorIs(t, err, ErrAlreadyExecuted)
	_, err = restored.Withdraw(ctx, alice)
	require.NoError(t, err)

	state.Executed = false
	_, err = Restore(Config{Beneficiary: f.beneficiary, Payer: f.payer, Log: f.log}, state)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRestoreRejectsInconsistentHeld(t *testing.T) {
	cfg := Config{Beneficiary: &fakeBeneficiary{}, Payer: &fakePayer{}, Log: event.NewMemoryLog()}
	state := meta.PoolState{
		Address:   "0xpool",
		Deadline:  start,
		Threshold: big.NewInt(10),
		Held:      big.NewInt(5),
		Balances:  map[string]*big.Int{alice: big.NewInt(2), bob: big.NewInt(3)},
	}
	_, err := Restore(cfg, state)
	require.NoError(t, err)

	state.Held = big.NewInt(6)
	_, err = Restore(cfg, state)
	require.ErrorIs(t, err, ErrInvalidConfig)

	// 已开放提现，held 仍等于余额之和
	state.Executed, state.OpenForWithdraw = true, true
	_, err = Restore(cfg, state)
	require.ErrorIs(t, err, ErrInvalidConfig)
	state.Held = big.NewInt(5)
	_, err = Restore(cfg, state)
	require.NoError(t, err)

	// 已转给受益合约，余额只作记录，held 必须为0
	state.OpenForWithdraw = false
	_, err = Restore(cfg, state)
	require.ErrorIs(t, err, ErrInvalidConfig)
	state.Held = new(big.Int)
	restored, err := Restore(cfg, state)
	require.NoError(t, err)
	require.Equal(t, meta.PhaseFunded, restored.Phase(start.Add(time.Hour)))
}
