package client

import (
	"github.com/cloudflare/cfssl/log"
	"github.com/gin-gonic/gin"
	"github.com/ssbcStaker/common"
	"github.com/ssbcStaker/contract"
	"github.com/ssbcStaker/meta"
	"github.com/ssbcStaker/util"
	"net/http"
	"strconv"
	"time"
)

func Cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method

		origin := c.Request.Header.Get("Origin")

		if origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Headers", "Content-Type,AccessToken,X-CSRF-Token, Authorization") //自定义 Header
			c.Header("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
			c.Header("Access-Control-Expose-Headers", "Content-Length, Access-Control-Allow-Origin, Access-Control-Allow-Headers, Content-Type")
			c.Header("Access-Control-Allow-Credentials", "true")
		}

		if method == "OPTIONS" {
			if origin == "" {
				c.Header("Access-Control-Allow-Origin", "*")
			}
			c.Header("Access-Control-Allow-Headers", "Content-Type,AccessToken,X-CSRF-Token, Authorization")
			c.Header("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// 前端展示用的 Stake 事件，金额单位为ether
type stakeLogView struct {
	Seq       uint64    `json:"seq"`
	Staker    string    `json:"staker"`
	Amount    string    `json:"amount"`
	AmountWei string    `json:"amountWei"`
	Timestamp time.Time `json:"timestamp"`
	TxHash    string    `json:"txHash"`
}

func toView(e meta.StakeEvent) stakeLogView {
	return stakeLogView{
		Seq:       e.Seq,
		Staker:    e.Staker,
		Amount:    util.FormatEther(e.Amount),
		AmountWei: util.CopyInt(e.Amount).String(),
		Timestamp: e.Timestamp,
		TxHash:    e.TxHash,
	}
}

// 账户注册
func (s *Server) registerAccount(ctx *gin.Context) {
	acc, err := s.svc.Register()
	if err != nil {
		log.Errorf("[registerAccount] %s", err)
		ctx.JSON(http.StatusOK, failResponse(err))
		return
	}
	ctx.JSON(http.StatusOK, goodResponse(acc))
}

// 质押
func (s *Server) stake(ctx *gin.Context) {
	ps := meta.PostStake{}
	if err := ctx.ShouldBindJSON(&ps); err != nil {
		log.Errorf("[stake],json decode err: %s", err)
		ctx.JSON(http.StatusOK, errResponse("请求格式错误"))
		return
	}
	if ps.From == "" {
		ctx.JSON(http.StatusOK, errResponse("发起地址不能为空"))
		return
	}
	amount, err := util.ParseEther(ps.Value)
	if err != nil {
		ctx.JSON(http.StatusOK, errResponse("质押金额格式错误"))
		return
	}
	e, err := s.svc.Stake(ctx.Request.Context(), ps.From, amount)
	if err != nil {
		ctx.JSON(http.StatusOK, failResponse(err))
		return
	}
	ctx.JSON(http.StatusOK, goodResponse(toView(e)))
}

func (s *Server) execute(ctx *gin.Context) {
	res, err := s.svc.Execute(ctx.Request.Context())
	if err != nil {
		ctx.JSON(http.StatusOK, failResponse(err))
		return
	}
	ctx.JSON(http.StatusOK, goodResponse(gin.H{
		"phase":     res.Phase,
		"total":     util.FormatEther(res.Total),
		"forwarded": util.FormatEther(res.Forwarded),
	}))
}

func (s *Server) withdraw(ctx *gin.Context) {
	pw := meta.PostWithdraw{}
	if err := ctx.ShouldBindJSON(&pw); err != nil || pw.From == "" {
		ctx.JSON(http.StatusOK, errResponse("发起地址不能为空"))
		return
	}
	amount, err := s.svc.Withdraw(ctx.Request.Context(), pw.From)
	if err != nil {
		ctx.JSON(http.StatusOK, failResponse(err))
		return
	}
	ctx.JSON(http.StatusOK, goodResponse(gin.H{"from": pw.From, "amount": util.FormatEther(amount)}))
}

func (s *Server) timeLeft(ctx *gin.Context) {
	st := s.svc.Status(ctx.Request.Context(), "")
	ctx.JSON(http.StatusOK, goodResponse(st.TimeLeft))
}

func (s *Server) status(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, goodResponse(s.svc.Status(ctx.Request.Context(), ctx.Query("address"))))
}

func (s *Server) balances(ctx *gin.Context) {
	addr := ctx.Query("address")
	if addr == "" {
		ctx.JSON(http.StatusOK, errResponse("地址不能为空"))
		return
	}
	ctx.JSON(http.StatusOK, goodResponse(gin.H{
		"address": addr,
		"stake":   util.FormatEther(s.svc.StakeOf(addr)),
		"balance": util.FormatEther(s.svc.AccountBalance(addr)),
	}))
}

// 返回序号在 [from, to) 内的 Stake 事件，to 缺省为最新
func (s *Server) stakeLogs(ctx *gin.Context) {
	from, err := queryUint(ctx, "from")
	if err != nil {
		ctx.JSON(http.StatusOK, errResponse("from 参数错误"))
		return
	}
	to, err := queryUint(ctx, "to")
	if err != nil {
		ctx.JSON(http.StatusOK, errResponse("to 参数错误"))
		return
	}
	events, err := s.svc.StakeLogs(ctx.Request.Context(), from, to)
	if err != nil {
		log.Errorf("[stakeLogs] %s", err)
		ctx.JSON(http.StatusOK, failResponse(err))
		return
	}
	views := make([]stakeLogView, 0, len(events))
	for _, e := range events {
		views = append(views, toView(e))
	}
	ctx.JSON(http.StatusOK, goodResponse(views))
}

func (s *Server) getDeployments(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, goodResponse(s.deployments))
}

func queryUint(ctx *gin.Context, key string) (uint64, error) {
	v := ctx.Query(key)
	if v == "" {
		return 0, nil
	}
	return strconv.ParseUint(v, 10, 64)
}

// 正常响应，返回数据
func goodResponse(data interface{}) meta.HttpResponse {
	res := meta.HttpResponse{
		Data: data,
		Code: common.ResponseCode,
	}
	return res
}

// 出现异常，返回异常信息
func errResponse(errMsg string) meta.HttpResponse {
	res := meta.HttpResponse{
		Error: errMsg,
		Data:  "",
		Code:  common.ResponseCode,
	}
	return res
}

// 合约调用失败，Data 为错误分类
func failResponse(err error) meta.HttpResponse {
	res := errResponse(err.Error())
	res.Data = contract.Reason(err)
	return res
}
