package event

import (
	"fmt"
	"sync"
)

// 每个订阅者的缓冲大小，写满后丢弃新消息
const feedBuffer = 20

// Feed 将合约执行日志推送给所有订阅者（websocket）
type Feed struct {
	mu     sync.Mutex
	subs   map[int]chan string
	nextID int
}

func NewFeed() *Feed {
	return &Feed{subs: map[int]chan string{}}
}

// 返回消息通道和取消函数，取消后通道关闭
func (f *Feed) Subscribe() (<-chan string, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	ch := make(chan string, feedBuffer)
	f.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			delete(f.subs, id)
			close(ch)
		})
	}
}

func (f *Feed) Publish(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (f *Feed) Publishf(format string, args ...interface{}) {
	f.Publish(fmt.Sprintf(format, args...))
}

func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
