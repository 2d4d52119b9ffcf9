package meta

// 外部合约服务的请求与返回格式

type ContractResponse struct {
	Read map[string]string `json:"read"` // 读集，不上链
	Set  map[string]string `json:"set"`  // 写集，需要更新到链上
}

type ContractRequest struct {
	Method string            `json:"method"`
	Args   map[string]string `json:"args"`
}

// 受益合约当前状态
type BeneficiaryStatus struct {
	Address   string `json:"address"`
	Completed bool   `json:"completed"`
	Balance   string `json:"balance"` // wei
	Funder    string `json:"funder"`  // 最近一次转入的地址
}
