// Package staker 实现限时众筹质押池
//
// 参与者在截止时间之前质押；截止之后任何人可以调用一次 Execute：
// 总额达到阈值时全部转给受益合约，否则开放提现，每个参与者取回自己的质押。
package staker

import (
	"context"
	"fmt"
	"github.com/cloudflare/cfssl/log"
	"github.com/ssbcStaker/meta"
	"github.com/ssbcStaker/util"
	"math/big"
	"sync"
	"time"
)

// Beneficiary 接收达到阈值后转出的全部资金
type Beneficiary interface {
	Receive(ctx context.Context, from string, amount *big.Int) error
}

// Payer 把提现的资金转回参与者
type Payer interface {
	Pay(ctx context.Context, to string, amount *big.Int) error
}

// EventLog 记录 Stake 事件
type EventLog interface {
	Append(ctx context.Context, e meta.StakeEvent) (meta.StakeEvent, error)
}

type Config struct {
	Address     string        // 质押池合约地址
	Threshold   *big.Int      // 阈值（wei）
	Duration    time.Duration // 质押窗口长度
	Beneficiary Beneficiary
	Payer       Payer
	Log         EventLog
}

func (c Config) validate() error {
	switch {
	case c.Threshold == nil || c.Threshold.Sign() < 0:
		return fmt.Errorf("%w: threshold must be non-negative", ErrInvalidConfig)
	case c.Beneficiary == nil:
		return fmt.Errorf("%w: missing beneficiary", ErrInvalidConfig)
	case c.Payer == nil:
		return fmt.Errorf("%w: missing payer", ErrInvalidConfig)
	case c.Log == nil:
		return fmt.Errorf("%w: missing event log", ErrInvalidConfig)
	}
	return nil
}

// Pool 的所有状态只在持有 mu 时修改；对外转账时不持有 mu，
// 转账前内部状态已经提交，转账中重入的调用看到的是一致的状态。
type Pool struct {
	mu sync.Mutex

	address     string
	beneficiary Beneficiary
	payer       Payer
	log         EventLog

	deadline  time.Time
	threshold *big.Int

	balances        map[string]*big.Int
	held            *big.Int
	executing       bool // 正在向受益合约转账
	executed        bool
	openForWithdraw bool
}

func New(cfg Config, now time.Time) (*Pool, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Duration <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", ErrInvalidConfig)
	}
	return &Pool{
		address:     cfg.Address,
		beneficiary: cfg.Beneficiary,
		payer:       cfg.Payer,
		log:         cfg.Log,
		deadline:    now.Add(cfg.Duration),
		threshold:   util.CopyInt(cfg.Threshold),
		balances:    map[string]*big.Int{},
		held:        new(big.Int),
	}, nil
}

// 从持久化的快照恢复，Duration 被忽略，deadline 和 threshold 以快照为准
func Restore(cfg Config, state meta.PoolState) (*Pool, error) {
	cfg.Threshold = state.Threshold
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if state.OpenForWithdraw && !state.Executed {
		return nil, fmt.Errorf("%w: open for withdraw before execute", ErrInvalidConfig)
	}
	p := &Pool{
		address:         state.Address,
		beneficiary:     cfg.Beneficiary,
		payer:           cfg.Payer,
		log:             cfg.Log,
		deadline:        state.Deadline,
		threshold:       util.CopyInt(state.Threshold),
		balances:        map[string]*big.Int{},
		held:            util.CopyInt(state.Held),
		executed:        state.Executed,
		openForWithdraw: state.OpenForWithdraw,
	}
	sum := new(big.Int)
	for addr, amount := range state.Balances {
		if amount != nil && amount.Sign() > 0 {
			p.balances[addr] = util.CopyInt(amount)
			sum.Add(sum, amount)
		}
	}
	// 已转给受益合约时余额只作记录，池中应为0；其他状态下 held 等于余额之和
	want := sum
	if state.Executed && !state.OpenForWithdraw {
		want = new(big.Int)
	}
	if p.held.Cmp(want) != 0 {
		return nil, fmt.Errorf("%w: held %s does not match balances %s", ErrInvalidConfig, p.held, want)
	}
	return p, nil
}

// Deposit 在截止时间之前质押 amount
func (p *Pool) Deposit(ctx context.Context, caller string, amount *big.Int, now time.Time) (meta.StakeEvent, error) {
	return p.DepositNow(ctx, caller, amount, func() time.Time { return now })
}

// DepositNow 与 Deposit 相同，但在持有 mu 时才读取 clock，
// 时间戳与账本更新、Execute 的决定处于同一串行顺序
func (p *Pool) DepositNow(ctx context.Context, caller string, amount *big.Int, clock func() time.Time) (meta.StakeEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// 执行开始后不再接受质押，即使调用方的时间仍早于截止时间
	if p.executed || p.executing {
		return meta.StakeEvent{}, ErrDeadlinePassed
	}
	now := clock()
	if !now.Before(p.deadline) {
		return meta.StakeEvent{}, ErrDeadlinePassed
	}
	if amount == nil || amount.Sign() <= 0 {
		return meta.StakeEvent{}, ErrZeroAmount
	}

	// 先写事件，事件写入失败则账本不变
	e, err := p.log.Append(ctx, meta.StakeEvent{
		Contract:  p.address,
		Staker:    caller,
		Amount:    util.CopyInt(amount),
		Timestamp: now,
	})
	if err != nil {
		return meta.StakeEvent{}, fmt.Errorf("record stake event: %w", err)
	}

	bal, ok := p.balances[caller]
	if !ok {
		bal = new(big.Int)
		p.balances[caller] = bal
	}
	bal.Add(bal, amount)
	p.held.Add(p.held, amount)
	log.Debugf("[Deposit] %s staked %s, balance %s, pool %s", caller, amount, bal, p.held)
	return e, nil
}

// TimeLeft 返回距截止时间的剩余时长，截止后为0
func (p *Pool) TimeLeft(now time.Time) time.Duration {
	if !now.Before(p.deadline) {
		return 0
	}
	return p.deadline.Sub(now)
}

// Execute 在截止之后调用，只能成功一次
//
// 达到阈值时把池中全部资金转给受益合约，转账确认成功后才标记为已执行；
// 转账失败时恢复到未执行状态，可以重新调用。未达阈值时开放提现，不转账。
func (p *Pool) Execute(ctx context.Context, now time.Time) (meta.ExecuteResult, error) {
	p.mu.Lock()
	if now.Before(p.deadline) {
		p.mu.Unlock()
		return meta.ExecuteResult{}, ErrDeadlineNotReached
	}
	if p.executed {
		p.mu.Unlock()
		return meta.ExecuteResult{}, ErrAlreadyExecuted
	}
	if p.executing {
		p.mu.Unlock()
		return meta.ExecuteResult{}, ErrExecutionInProgress
	}

	total := util.CopyInt(p.held)
	if total.Cmp(p.threshold) < 0 {
		p.executed = true
		p.openForWithdraw = true
		p.mu.Unlock()
		log.Infof("[Execute] pool %s total %s below threshold %s, withdrawals open", p.address, total, p.threshold)
		return meta.ExecuteResult{Phase: meta.PhaseRefundable, Total: total, Forwarded: new(big.Int)}, nil
	}

	p.executing = true
	p.mu.Unlock()

	err := p.beneficiary.Receive(ctx, p.address, util.CopyInt(total))

	p.mu.Lock()
	defer p.mu.Unlock()
	p.executing = false
	if err != nil {
		log.Errorf("[Execute] forward %s from pool %s failed: %s", total, p.address, err)
		return meta.ExecuteResult{}, fmt.Errorf("%w: %v", ErrForwardFailed, err)
	}
	p.executed = true
	p.held.Sub(p.held, total)
	log.Infof("[Execute] pool %s forwarded %s to beneficiary", p.address, total)
	return meta.ExecuteResult{Phase: meta.PhaseFunded, Total: total, Forwarded: util.CopyInt(total)}, nil
}

// Withdraw 在开放提现后取回 caller 的全部质押
func (p *Pool) Withdraw(ctx context.Context, caller string) (*big.Int, error) {
	p.mu.Lock()
	if !p.openForWithdraw {
		p.mu.Unlock()
		return nil, ErrWithdrawalsNotOpen
	}
	amount, ok := p.balances[caller]
	if !ok || amount.Sign() <= 0 {
		p.mu.Unlock()
		return nil, ErrNothingToWithdraw
	}
	// 转账前清零，防止重入重复提现
	delete(p.balances, caller)
	p.held.Sub(p.held, amount)
	p.mu.Unlock()

	if err := p.payer.Pay(ctx, caller, util.CopyInt(amount)); err != nil {
		p.mu.Lock()
		defer p.mu.Unlock()
		if bal, ok := p.balances[caller]; ok {
			bal.Add(bal, amount)
		} else {
			p.balances[caller] = amount
		}
		p.held.Add(p.held, amount)
		log.Errorf("[Withdraw] pay %s to %s failed: %s", amount, caller, err)
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	log.Infof("[Withdraw] %s withdrew %s", caller, amount)
	return util.CopyInt(amount), nil
}

// Phase 返回 now 时刻质押池所处的阶段
func (p *Pool) Phase(now time.Time) meta.PoolPhase {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.executed && p.openForWithdraw:
		return meta.PhaseRefundable
	case p.executed:
		return meta.PhaseFunded
	case now.Before(p.deadline):
		return meta.PhaseOpen
	default:
		return meta.PhaseClosed
	}
}

func (p *Pool) BalanceOf(addr string) *big.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return util.CopyInt(p.balances[addr])
}

// Balances 返回所有余额不为0的参与者
func (p *Pool) Balances() map[string]*big.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	res := make(map[string]*big.Int, len(p.balances))
	for addr, amount := range p.balances {
		res[addr] = util.CopyInt(amount)
	}
	return res
}

// Held 返回池中当前持有的总额
func (p *Pool) Held() *big.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return util.CopyInt(p.held)
}

func (p *Pool) Threshold() *big.Int { return util.CopyInt(p.threshold) }

func (p *Pool) Deadline() time.Time { return p.deadline }

func (p *Pool) Address() string { return p.address }

func (p *Pool) Executed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.executed
}

func (p *Pool) OpenForWithdraw() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.openForWithdraw
}

// Snapshot 返回可持久化的状态
func (p *Pool) Snapshot() meta.PoolState {
	p.mu.Lock()
	defer p.mu.Unlock()
	state := meta.PoolState{
		Address:         p.address,
		Deadline:        p.deadline,
		Threshold:       util.CopyInt(p.threshold),
		Held:            util.CopyInt(p.held),
		Executed:        p.executed,
		OpenForWithdraw: p.openForWithdraw,
		Balances:        make(map[string]*big.Int, len(p.balances)),
	}
	for addr, amount := range p.balances {
		state.Balances[addr] = util.CopyInt(amount)
	}
	return state
}
