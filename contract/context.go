package contract

import (
	"bytes"
	"encoding/json"
	"github.com/cloudflare/cfssl/log"
	"math/big"
	"time"
)

// 合约调用上下文
type callContext struct {
	Contract string    `json:"contract"` // 被调用的合约地址
	Method   string    `json:"method"`   // 被调用的方法
	Caller   string    `json:"caller"`   // 调用者地址
	Value    *big.Int  `json:"value"`    // 调用合约时的转账金额
	Time     time.Time `json:"time"`     // 调用时刻，作为截止时间判断的依据
}

func (s *Service) newContext(method, caller string, value *big.Int, now time.Time) callContext {
	return callContext{
		Contract: s.poolAddr,
		Method:   method,
		Caller:   caller,
		Value:    value,
		Time:     now,
	}
}

func printContext(c callContext) {
	bs, _ := json.Marshal(c)
	var out bytes.Buffer
	_ = json.Indent(&out, bs, "", "\t")
	log.Debugf("当前合约调用的context: %v", out.String())
}
