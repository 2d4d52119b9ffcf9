package client

import (
	"github.com/cloudflare/cfssl/log"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"net/http"
)

var upGrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// 使用WebSocket向前端推送合约执行信息，只推送连接建立之后的日志
func (s *Server) getLog(c *gin.Context) {
	logs, cancel := s.feed.Subscribe()
	defer cancel()

	// 升级请求为WebSocket协议
	ws, err := upGrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Info("Upgrade failed")
		return
	}
	defer ws.Close()

	// 前端关闭连接时读取出错
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case result, ok := <-logs:
			if !ok {
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, []byte(result)); err != nil {
				log.Info(err)
				return
			}
		}
	}
}
