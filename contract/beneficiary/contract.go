// Package beneficiary 实现接收质押池资金的外部合约
//
// Contract 可以在节点内直接使用，也可以通过 NewRouter 作为独立的 HTTP 合约服务部署，
// 节点端用 HTTPClient 调用。
package beneficiary

import (
	"context"
	"errors"
	"fmt"
	"github.com/cloudflare/cfssl/log"
	"github.com/ssbcStaker/meta"
	"github.com/ssbcStaker/util"
	"math/big"
	"sync"
)

var ErrAlreadyFunded = errors.New("beneficiary already funded by this pool")

// Contract 收到转账后标记为已完成
type Contract struct {
	mu        sync.Mutex
	address   string
	completed bool
	balance   *big.Int
	funder    string
	received  map[string]*big.Int // 每个质押池转入的金额
}

func NewContract(address string) *Contract {
	return &Contract{address: address, balance: new(big.Int), received: map[string]*big.Int{}}
}

// Receive 对应合约的 complete() 方法
//
// 同一质押池只入账一次：重复的相同请求直接返回成功，金额不同的重复请求返回 ErrAlreadyFunded
func (c *Contract) Receive(_ context.Context, from string, amount *big.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	amount = util.CopyInt(amount)
	if prev, ok := c.received[from]; ok {
		if prev.Cmp(amount) == 0 {
			log.Warningf("[Beneficiary] %s ignored repeated funding from %s", c.address, from)
			return nil
		}
		return fmt.Errorf("%w: %s sent %s, now %s", ErrAlreadyFunded, from, prev, amount)
	}
	c.received[from] = amount
	c.completed = true
	c.funder = from
	c.balance.Add(c.balance, amount)
	log.Infof("[Beneficiary] %s funded by %s with %s", c.address, from, amount)
	return nil
}

func (c *Contract) Completed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completed
}

func (c *Contract) Balance() *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return util.CopyInt(c.balance)
}

func (c *Contract) Address() string { return c.address }

func (c *Contract) Status(_ context.Context) (meta.BeneficiaryStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return meta.BeneficiaryStatus{
		Address:   c.address,
		Completed: c.completed,
		Balance:   c.balance.String(),
		Funder:    c.funder,
	}, nil
}
