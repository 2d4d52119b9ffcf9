package client

import (
	"github.com/cloudflare/cfssl/log"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ssbcStaker/contract"
	"github.com/ssbcStaker/event"
	"github.com/ssbcStaker/meta"
	"github.com/unrolled/secure"
)

type Options struct {
	SSLRedirect bool   // 重定向为https
	SSLHost     string // 重定向的目标地址
	Deployments meta.DeploymentMap
}

// Server 把质押池服务暴露给前端
type Server struct {
	svc         *contract.Service
	feed        *event.Feed
	deployments meta.DeploymentMap
}

// NewRouter 注册所有接口，feed 为nil时不提供 /getLog
func NewRouter(svc *contract.Service, feed *event.Feed, opts Options) *gin.Engine {
	s := &Server{svc: svc, feed: feed, deployments: opts.Deployments}
	if s.deployments == nil {
		s.deployments = meta.DeploymentMap{}
	}

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(Cors()) // 使用跨域组件
	if opts.SSLRedirect {
		r.Use(TlsHandler(opts.SSLHost))
	}
	r.GET("/registerAccount", s.registerAccount) // 注册账户
	r.POST("/stake", s.stake)                    // 质押
	r.POST("/execute", s.execute)                // 截止后结算
	r.POST("/withdraw", s.withdraw)              // 未达阈值时提现
	r.GET("/timeLeft", s.timeLeft)               // 剩余时间（秒）
	r.GET("/status", s.status)                   // 质押池状态
	r.GET("/balances", s.balances)               // 用户的质押和账户余额
	r.GET("/stakeLogs", s.stakeLogs)             // Stake 事件
	r.GET("/deployments", s.getDeployments)      // 合约地址簿
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if feed != nil {
		r.GET("/getLog", s.getLog) // 与前端建立websocket
	}
	return r
}

// 监听用户请求
func ListenRequest(addr string, r *gin.Engine) error {
	log.Info(" ---------------------------------------------------------------------------------")
	log.Infof("|  staking pool client listening on %s  |", addr)
	log.Info(" ---------------------------------------------------------------------------------")
	return r.Run(addr)
}

func TlsHandler(host string) gin.HandlerFunc {
	secureMiddleware := secure.New(secure.Options{
		SSLRedirect: true,
		SSLHost:     host,
	})
	return func(c *gin.Context) {
		err := secureMiddleware.Process(c.Writer, c.Request)

		// If there was an error, do not continue.
		if err != nil {
			c.Abort()
			return
		}
		// Avoid header rewrite if response is a redirection.
		if status := c.Writer.Status(); status > 300 && status < 399 {
			c.Abort()
			return
		}
		c.Next()
	}
}
