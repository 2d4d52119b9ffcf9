package meta

import (
	"math/big"
	"time"
)

// Stake 事件，每次成功质押追加一条
type StakeEvent struct {
	Seq       uint64    `json:"seq"`      // 在事件日志中的序号，从0开始
	Contract  string    `json:"contract"` // 产生事件的合约地址
	Staker    string    `json:"staker"`
	Amount    *big.Int  `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
	TxHash    string    `json:"tx_hash"`
}
