package account

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/cloudflare/cfssl/log"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ssbcStaker/common"
	"github.com/ssbcStaker/levelDB"
	"github.com/ssbcStaker/meta"
	"github.com/ssbcStaker/util"
	"math/big"
	"sort"
	"sync"
)

/* 这里封装了所有的对账户的操作
 * State 保存所有账户（普通账户和合约账户）的余额，
 * 每次更改都持久化到 levelDB，节点启动时读回
 */

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrAccountExists       = errors.New("account already exists")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

type State struct {
	mu       sync.RWMutex
	accounts map[string]meta.Account // key: 账户地址 - val: 账户信息
	db       *levelDB.DB             // 为nil时不持久化
}

func NewState(db *levelDB.DB) *State {
	return &State{accounts: map[string]meta.Account{}, db: db}
}

// 创建普通账户
func (s *State) CreateAccount(address, publicKey string, balance *big.Int) (meta.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[address]; ok {
		return meta.Account{}, fmt.Errorf("%w: %s", ErrAccountExists, address)
	}
	account := meta.Account{
		Address:   address,
		Balance:   util.CopyInt(balance),
		PublicKey: publicKey,
	}
	s.accounts[address] = account
	if err := s.putIntoDisk(); err != nil {
		delete(s.accounts, address)
		return meta.Account{}, err
	}
	return copyAccount(account), nil
}

// 创建智能合约账户，已存在时直接返回
func (s *State) CreateContract(address, name string) (meta.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acc, ok := s.accounts[address]; ok {
		if !acc.IsContract {
			return meta.Account{}, fmt.Errorf("%w: %s is not a contract", ErrAccountExists, address)
		}
		return copyAccount(acc), nil
	}
	contract := meta.Account{
		Address:    address,
		Balance:    new(big.Int),
		Data:       meta.AccountData{ContractName: name},
		IsContract: true,
	}
	s.accounts[address] = contract
	if err := s.putIntoDisk(); err != nil {
		delete(s.accounts, address)
		return meta.Account{}, err
	}
	return copyAccount(contract), nil
}

// 注册账户：生成 secp256k1 密钥，地址为公钥对应的以太坊地址，并转入初始余额
func (s *State) Register(balance *big.Int) (meta.ChainAccount, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return meta.ChainAccount{}, err
	}
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()
	pubKey := hex.EncodeToString(crypto.FromECDSAPub(&key.PublicKey))
	if _, err := s.CreateAccount(address, pubKey, balance); err != nil {
		return meta.ChainAccount{}, err
	}
	log.Infof("[Register] new account %s with balance %s", address, util.FormatEther(balance))
	return meta.ChainAccount{
		AccountAddress: address,
		PublicKey:      pubKey,
		PrivateKey:     hex.EncodeToString(crypto.FromECDSA(key)),
	}, nil
}

// 由 from 向 to 转账，amount <= 0 时不做任何操作
func (s *State) Transfer(from, to string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sender, ok := s.accounts[from]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, from)
	}
	receiver, ok := s.accounts[to]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, to)
	}
	if sender.Balance.Cmp(amount) < 0 {
		log.Infof("[Transfer]: Insufficient balance.")
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, from, sender.Balance, amount)
	}
	if from == to {
		return nil
	}
	oldSender, oldReceiver := sender.Balance, receiver.Balance
	sender.Balance = new(big.Int).Sub(oldSender, amount)
	receiver.Balance = new(big.Int).Add(oldReceiver, amount)
	s.accounts[from] = sender
	s.accounts[to] = receiver

	if err := s.putIntoDisk(); err != nil {
		// 回滚
		sender.Balance, receiver.Balance = oldSender, oldReceiver
		s.accounts[from] = sender
		s.accounts[to] = receiver
		return err
	}
	return nil
}

// 判断交易发起方是否有足够余额
func (s *State) CanTransfer(sender string, amount *big.Int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[sender]
	return ok && acc.Balance.Cmp(amount) >= 0
}

// 账户地址是否存在
func (s *State) ContainsAddress(address string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.accounts[address]
	return ok
}

// 获取账户信息
func (s *State) GetAccount(address string) (meta.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[address]
	if !ok {
		return meta.Account{}, false
	}
	return copyAccount(acc), true
}

// 获取余额，账户不存在时为0
func (s *State) GetBalance(address string) *big.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return util.CopyInt(s.accounts[address].Balance)
}

// 获取所有的账户地址（有序）
func (s *State) GetTotalAddress() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	totalAddress := make([]string, 0, len(s.accounts))
	for address := range s.accounts {
		totalAddress = append(totalAddress, address)
	}
	sort.Strings(totalAddress)
	return totalAddress
}

// 是否为智能合约账户地址
func (s *State) IsContractAccount(address string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accounts[address].IsContract
}

// 持久化（每次对账户信息的更改都需要持久化到磁盘），调用方持有锁
func (s *State) putIntoDisk() error {
	if s.db == nil {
		return nil
	}
	bytes, err := json.Marshal(s.accounts)
	if err != nil {
		util.DealJsonErr("putIntoDisk", err)
		return err
	}
	return s.db.Put(common.AccountsKey, bytes)
}

// 从磁盘获取已有的账户信息（在节点启动时执行）
func (s *State) GetFromDisk() error {
	if s.db == nil {
		return nil
	}
	accountBytes, err := s.db.Get(common.AccountsKey)
	if errors.Is(err, levelDB.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	accounts := map[string]meta.Account{}
	if err := json.Unmarshal(accountBytes, &accounts); err != nil {
		util.DealJsonErr("GetFromDisk", err)
		return err
	}
	for addr, acc := range accounts {
		if acc.Balance == nil {
			acc.Balance = new(big.Int)
			accounts[addr] = acc
		}
	}
	s.mu.Lock()
	s.accounts = accounts
	s.mu.Unlock()
	return nil
}

func copyAccount(acc meta.Account) meta.Account {
	acc.Balance = util.CopyInt(acc.Balance)
	return acc
}
