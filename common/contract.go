package common

// 部署时使用的合约名称，与地址簿中的 key 一致
const (
	StakerContractName      = "Staker"
	BeneficiaryContractName = "ExampleExternalContract"
)

// levelDB 存储质押池状态快照的key
const PoolStateKey = "levelDBPoolStateKey"

// levelDB 中 Stake 事件的前缀（key: 前缀 + 8字节大端序号 - val: 事件json）
const StakeLogPrefix = "stake/"

// levelDB 中 Stake 事件数量的key
const StakeLogCountKey = "stakeLogCount"

// redis 中 Stake 事件列表的key
const StakeLogRedisKey = "stakeLogs"

// vue-element-admin 的前端校验码，必须为20000
const ResponseCode = 20000
