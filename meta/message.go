package meta

type HttpResponse struct {
	Error string      `json:"error"` // 如果不为空代表错误信息
	Data  interface{} `json:"data"`
	Code  int         `json:"code"` // vue-element-admin的前端校验码，必须为20000
}

// 提交质押
type PostStake struct {
	From  string `json:"from"`
	Value string `json:"value"` // ether，例如 "0.5"
}

// 提现
type PostWithdraw struct {
	From string `json:"from"`
}
