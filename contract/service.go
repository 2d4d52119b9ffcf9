package contract

import (
	"context"
	"errors"
	"fmt"
	"github.com/cloudflare/cfssl/log"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ssbcStaker/account"
	"github.com/ssbcStaker/common"
	"github.com/ssbcStaker/contract/staker"
	"github.com/ssbcStaker/event"
	"github.com/ssbcStaker/levelDB"
	"github.com/ssbcStaker/meta"
	"github.com/ssbcStaker/metrics"
	"github.com/ssbcStaker/util"
	"math/big"
	"time"
)

/*
 * 节点提供给外部的质押池接口：
 * 把账户余额的变动和质押池的状态机绑定在一起
 */

var (
	ErrSnapshotMismatch = errors.New("pool snapshot belongs to another pool")
	ErrBalanceMismatch  = errors.New("pool account balance does not match held stake")
)

// Beneficiary 是受益合约，既能接收转账也能查询状态
type Beneficiary interface {
	staker.Beneficiary
	Status(ctx context.Context) (meta.BeneficiaryStatus, error)
}

type Options struct {
	PoolAddress        string
	BeneficiaryAddress string
	Threshold          *big.Int
	Duration           time.Duration
	Beneficiary        Beneficiary
	Accounts           *account.State
	Events             event.Log
	Feed               *event.Feed      // 可选，推送合约日志
	DB                 *levelDB.DB      // 可选，持久化质押池快照
	InitBalance        *big.Int         // 注册账户时转入的金额，默认 common.InitBalance
	Now                func() time.Time // 默认 time.Now
}

type Service struct {
	pool        *staker.Pool
	poolAddr    string
	benefAddr   string
	beneficiary Beneficiary
	accounts    *account.State
	events      event.Log
	feed        *event.Feed
	db          *levelDB.DB
	initBalance *big.Int
	now         func() time.Time
}

func NewService(opts Options) (*Service, error) {
	if opts.Accounts == nil || opts.Events == nil || opts.Beneficiary == nil {
		return nil, fmt.Errorf("%w: missing accounts, events or beneficiary", staker.ErrInvalidConfig)
	}
	s := &Service{
		poolAddr:    opts.PoolAddress,
		benefAddr:   opts.BeneficiaryAddress,
		beneficiary: opts.Beneficiary,
		accounts:    opts.Accounts,
		events:      opts.Events,
		feed:        opts.Feed,
		db:          opts.DB,
		initBalance: opts.InitBalance,
		now:         opts.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.initBalance == nil {
		s.initBalance = common.InitBalance
	}
	if _, err := s.accounts.CreateContract(s.poolAddr, common.StakerContractName); err != nil {
		return nil, err
	}
	if _, err := s.accounts.CreateContract(s.benefAddr, common.BeneficiaryContractName); err != nil {
		return nil, err
	}

	cfg := staker.Config{
		Address:   s.poolAddr,
		Threshold: opts.Threshold,
		Duration:  opts.Duration,
		Beneficiary: &forwarder{
			accounts: s.accounts,
			from:     s.poolAddr,
			to:       s.benefAddr,
			target:   opts.Beneficiary,
		},
		Payer: &accountPayer{accounts: s.accounts, from: s.poolAddr},
		Log:   s.events,
	}

	pool, err := s.loadPool(cfg)
	if err != nil {
		return nil, err
	}
	s.pool = pool
	if err := s.CheckBalance(); err != nil {
		log.Errorf("pool %s: %s", s.poolAddr, err)
	}
	s.persist()
	metrics.HeldEther.Set(util.EtherFloat(pool.Held()))
	log.Infof("pool %s deadline %s threshold %s ether", s.poolAddr, pool.Deadline().Format(time.RFC3339), util.FormatEther(pool.Threshold()))
	return s, nil
}

func (s *Service) loadPool(cfg staker.Config) (*staker.Pool, error) {
	if s.db != nil {
		state, ok, err := LoadState(s.db)
		if err != nil {
			return nil, err
		}
		if ok {
			if state.Address != s.poolAddr {
				return nil, fmt.Errorf("%w: %s", ErrSnapshotMismatch, state.Address)
			}
			log.Infof("restore pool %s from snapshot", state.Address)
			return staker.Restore(cfg, state)
		}
	}
	return staker.New(cfg, s.now())
}

// 账户注册
func (s *Service) Register() (meta.ChainAccount, error) {
	return s.accounts.Register(s.initBalance)
}

// Stake 从 from 账户转入 amount 并记入质押池，质押失败时退回转账
func (s *Service) Stake(ctx context.Context, from string, amount *big.Int) (meta.StakeEvent, error) {
	from = normalizeAddress(from)
	now := s.now()
	printContext(s.newContext("stake", from, amount, now))

	if !s.accounts.ContainsAddress(from) {
		err := fmt.Errorf("%w: %s", account.ErrAccountNotFound, from)
		s.fail("stake", err)
		return meta.StakeEvent{}, err
	}
	if err := s.accounts.Transfer(from, s.poolAddr, amount); err != nil {
		s.fail("stake", err)
		return meta.StakeEvent{}, err
	}
	e, err := s.pool.DepositNow(ctx, from, amount, s.now)
	if err != nil {
		if rerr := s.accounts.Transfer(s.poolAddr, from, amount); rerr != nil { // 退回转账
			log.Errorf("[Stake] refund %s to %s failed: %s", amount, from, rerr)
		}
		s.fail("stake", err)
		return meta.StakeEvent{}, err
	}

	metrics.Deposits.Inc()
	metrics.DepositedEther.Add(util.EtherFloat(amount))
	s.afterChange()
	s.info("Stake: %s staked %s ether", from, util.FormatEther(amount))
	return e, nil
}

// Execute 截止之后结算质押池
func (s *Service) Execute(ctx context.Context) (meta.ExecuteResult, error) {
	now := s.now()
	printContext(s.newContext("execute", "", nil, now))
	res, err := s.pool.Execute(ctx, now)
	if err != nil {
		s.fail("execute", err)
		return meta.ExecuteResult{}, err
	}
	metrics.Executions.WithLabelValues(string(res.Phase)).Inc()
	s.afterChange()
	if res.Phase == meta.PhaseFunded {
		s.info("Execute: forwarded %s ether to %s", util.FormatEther(res.Forwarded), s.benefAddr)
	} else {
		s.info("Execute: total %s ether below threshold, withdrawals open", util.FormatEther(res.Total))
	}
	return res, nil
}

// Withdraw 取回 from 的全部质押
func (s *Service) Withdraw(ctx context.Context, from string) (*big.Int, error) {
	from = normalizeAddress(from)
	printContext(s.newContext("withdraw", from, nil, s.now()))
	amount, err := s.pool.Withdraw(ctx, from)
	if err != nil {
		s.fail("withdraw", err)
		return nil, err
	}
	metrics.Withdrawals.Inc()
	s.afterChange()
	s.info("Withdraw: %s withdrew %s ether", from, util.FormatEther(amount))
	return amount, nil
}

// CheckBalance 比较质押池合约账户余额与账本中的 held；
// 账户转账和快照不在同一次写入中，进程在两者之间退出时会出现不一致
func (s *Service) CheckBalance() error {
	held := s.pool.Held()
	balance := s.accounts.GetBalance(s.poolAddr)
	if balance.Cmp(held) != 0 {
		return fmt.Errorf("%w: account %s, held %s", ErrBalanceMismatch, balance, held)
	}
	return nil
}

func (s *Service) TimeLeft() time.Duration {
	return s.pool.TimeLeft(s.now())
}

// 参与者在质押池中的余额
func (s *Service) StakeOf(addr string) *big.Int {
	return s.pool.BalanceOf(normalizeAddress(addr))
}

// 账户的链上余额
func (s *Service) AccountBalance(addr string) *big.Int {
	return s.accounts.GetBalance(normalizeAddress(addr))
}

// StakeLogs 返回序号在 [from, to) 内的 Stake 事件，to 为0表示到最新
func (s *Service) StakeLogs(ctx context.Context, from, to uint64) ([]meta.StakeEvent, error) {
	if to == 0 {
		n, err := s.events.Len(ctx)
		if err != nil {
			return nil, err
		}
		to = n
	}
	return s.events.Range(ctx, from, to)
}

// Status 返回前端展示需要的全部状态，addr 为空时不查询用户余额
func (s *Service) Status(ctx context.Context, addr string) meta.PoolStatus {
	now := s.now()
	st := meta.PoolStatus{
		Address:         s.poolAddr,
		Phase:           s.pool.Phase(now),
		ContractBalance: util.FormatEther(s.accounts.GetBalance(s.poolAddr)),
		Threshold:       util.FormatEther(s.pool.Threshold()),
		TimeLeft:        ceilSeconds(s.pool.TimeLeft(now)),
		Deadline:        s.pool.Deadline(),
		OpenForWithdraw: s.pool.OpenForWithdraw(),
		Executed:        s.pool.Executed(),
		UserBalance:     "0",
		Beneficiary:     meta.BeneficiaryStatus{Address: s.benefAddr},
	}
	if addr != "" {
		st.UserBalance = util.FormatEther(s.StakeOf(addr))
	}
	bs, err := s.beneficiary.Status(ctx)
	if err != nil {
		log.Warningf("query beneficiary status: %s", err)
	} else {
		st.Beneficiary = bs
		st.Beneficiary.Address = s.benefAddr
	}
	return st
}

func (s *Service) Pool() *staker.Pool { return s.pool }

func (s *Service) PoolAddress() string { return s.poolAddr }

func (s *Service) BeneficiaryAddress() string { return s.benefAddr }

func (s *Service) afterChange() {
	metrics.HeldEther.Set(util.EtherFloat(s.pool.Held()))
	s.persist()
}

func (s *Service) persist() {
	if s.db == nil {
		return
	}
	state := s.pool.Snapshot()
	state.Beneficiary = s.benefAddr
	if err := SaveState(s.db, state); err != nil {
		log.Errorf("save pool snapshot: %s", err)
	}
}

func (s *Service) info(format string, args ...interface{}) {
	log.Infof(format, args...)
	if s.feed != nil {
		s.feed.Publishf(format, args...)
	}
}

func (s *Service) fail(op string, err error) {
	metrics.Failures.WithLabelValues(op, Reason(err)).Inc()
	log.Infof("[%s] %s", op, err)
	if s.feed != nil {
		s.feed.Publishf("%s failed: %s", op, err)
	}
}

// Reason 返回错误的简短分类，用于指标和接口返回
func Reason(err error) string {
	switch {
	case errors.Is(err, staker.ErrDeadlinePassed):
		return "deadline_passed"
	case errors.Is(err, staker.ErrDeadlineNotReached):
		return "deadline_not_reached"
	case errors.Is(err, staker.ErrAlreadyExecuted):
		return "already_executed"
	case errors.Is(err, staker.ErrExecutionInProgress):
		return "execution_in_progress"
	case errors.Is(err, staker.ErrWithdrawalsNotOpen):
		return "withdrawals_not_open"
	case errors.Is(err, staker.ErrNothingToWithdraw):
		return "nothing_to_withdraw"
	case errors.Is(err, staker.ErrZeroAmount):
		return "zero_amount"
	case errors.Is(err, staker.ErrForwardFailed):
		return "forward_failed"
	case errors.Is(err, staker.ErrTransferFailed):
		return "transfer_failed"
	case errors.Is(err, account.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, account.ErrAccountNotFound):
		return "account_not_found"
	default:
		return "internal"
	}
}

// 十六进制地址统一为校验和格式，其他地址原样返回
func normalizeAddress(addr string) string {
	if ethcommon.IsHexAddress(addr) {
		return ethcommon.HexToAddress(addr).Hex()
	}
	return addr
}

func ceilSeconds(d time.Duration) int64 {
	return int64((d + time.Second - 1) / time.Second)
}

// forwarder 先在账户间转账，再通知受益合约；通知失败时转账回滚
type forwarder struct {
	accounts *account.State
	from     string
	to       string
	target   Beneficiary
}

func (f *forwarder) Receive(ctx context.Context, from string, amount *big.Int) error {
	if err := f.accounts.Transfer(f.from, f.to, amount); err != nil {
		return err
	}
	if err := f.target.Receive(ctx, from, amount); err != nil {
		// 远程调用超时或响应丢失时受益合约可能已经入账，此时不能回滚
		if st, serr := f.target.Status(ctx); serr == nil && st.Completed && st.Funder == from {
			log.Warningf("[forwarder] receive from %s returned %s, but beneficiary already funded", from, err)
			return nil
		}
		if rerr := f.accounts.Transfer(f.to, f.from, amount); rerr != nil {
			log.Errorf("[forwarder] rollback %s from %s failed: %s", amount, f.to, rerr)
		}
		return err
	}
	return nil
}

// accountPayer 从质押池合约账户转账给参与者
type accountPayer struct {
	accounts *account.State
	from     string
}

func (p *accountPayer) Pay(_ context.Context, to string, amount *big.Int) error {
	return p.accounts.Transfer(p.from, to, amount)
}
