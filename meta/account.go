package meta

import "math/big"

// 账户

type Account struct {
	Address    string      `json:"address"` // 账户地址
	Balance    *big.Int    `json:"balance"` // 账户余额（wei）
	Data       AccountData `json:"data"`
	PublicKey  string      `json:"public_key"`  // 账户公钥（hex）
	IsContract bool        `json:"is_contract"` // 是否为合约账户
}

type AccountData struct {
	ContractName string `json:"contract_name"` // 合约名称
}

// 注册账户后返回给前端，私钥只在这里出现一次
type ChainAccount struct {
	AccountAddress string `json:"account_address"`
	PublicKey      string `json:"public_key"`
	PrivateKey     string `json:"private_key"`
}
