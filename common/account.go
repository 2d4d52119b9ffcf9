package common

import "math/big"

// levelDB 所有账户的key（key: AccountsKey - val: 全部账户信息）
const AccountsKey = "levelDBAccountsKey"

// 注册账户时默认转入的金额：10 ether
var InitBalance = new(big.Int).Mul(big.NewInt(10), big.NewInt(1e18))
