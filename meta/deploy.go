package meta

// 地址簿：链ID -> 合约名称 -> 合约地址和接口描述
type DeploymentMap map[int64]map[string]ContractExport

type ContractExport struct {
	Address string     `json:"address"`
	ABI     []ABIEntry `json:"abi"`
}

// 接口描述中的一项（方法或事件）
type ABIEntry struct {
	Type            string     `json:"type"` // function / event
	Name            string     `json:"name"`
	Inputs          []ABIParam `json:"inputs,omitempty"`
	Outputs         []ABIParam `json:"outputs,omitempty"`
	StateMutability string     `json:"stateMutability,omitempty"`
}

type ABIParam struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Indexed bool   `json:"indexed,omitempty"`
}
