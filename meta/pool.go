package meta

import (
	"math/big"
	"time"
)

// 质押池所处阶段
type PoolPhase string

const (
	PhaseOpen       PoolPhase = "OPEN"       // 截止时间之前，可以质押
	PhaseClosed     PoolPhase = "CLOSED"     // 截止时间已过，尚未执行
	PhaseFunded     PoolPhase = "FUNDED"     // 已执行，资金已转给受益合约
	PhaseRefundable PoolPhase = "REFUNDABLE" // 已执行，未达阈值，开放提现
)

// 质押池状态快照，持久化到levelDB
type PoolState struct {
	Address         string              `json:"address"`
	Beneficiary     string              `json:"beneficiary"`
	Deadline        time.Time           `json:"deadline"`
	Threshold       *big.Int            `json:"threshold"`
	Held            *big.Int            `json:"held"`
	Executed        bool                `json:"executed"`
	OpenForWithdraw bool                `json:"open_for_withdraw"`
	Balances        map[string]*big.Int `json:"balances"`
}

// 执行结果
type ExecuteResult struct {
	Phase     PoolPhase `json:"phase"`
	Total     *big.Int  `json:"total"`     // 执行时池中的总额
	Forwarded *big.Int  `json:"forwarded"` // 转给受益合约的金额，未达阈值时为0
}

// 前端展示用的质押池状态
type PoolStatus struct {
	Address         string            `json:"address"`
	Phase           PoolPhase         `json:"phase"`
	ContractBalance string            `json:"contract_balance"` // ether
	Threshold       string            `json:"threshold"`        // ether
	TimeLeft        int64             `json:"time_left"`        // 秒
	Deadline        time.Time         `json:"deadline"`
	OpenForWithdraw bool              `json:"open_for_withdraw"`
	Executed        bool              `json:"executed"`
	UserBalance     string            `json:"user_balance"` // ether
	Beneficiary     BeneficiaryStatus `json:"beneficiary"`
}
