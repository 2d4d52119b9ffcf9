package event

import (
	"context"
	"encoding/json"
	"errors"
	"github.com/ssbcStaker/meta"
	"github.com/ssbcStaker/util"
)

var ErrInvalidEvent = errors.New("invalid stake event")

// Log 是 Stake 事件的只追加日志
//
// Append 为事件分配序号和交易hash后写入；Range 返回序号在 [from, to) 内的事件，
// to 超过日志长度时按日志长度截断。
type Log interface {
	Append(ctx context.Context, e meta.StakeEvent) (meta.StakeEvent, error)
	Range(ctx context.Context, from, to uint64) ([]meta.StakeEvent, error)
	Len(ctx context.Context) (uint64, error)
}

// 设置序号并计算交易hash
func seal(e meta.StakeEvent, seq uint64) (meta.StakeEvent, error) {
	if e.Staker == "" || e.Amount == nil || e.Amount.Sign() <= 0 {
		return meta.StakeEvent{}, ErrInvalidEvent
	}
	e.Seq = seq
	e.Amount = util.CopyInt(e.Amount)
	e.TxHash = ""
	hash, err := util.CalculateJsonHash(e)
	if err != nil {
		return meta.StakeEvent{}, err
	}
	e.TxHash = hash
	return e, nil
}

func clamp(from, to, n uint64) (uint64, uint64) {
	if to > n {
		to = n
	}
	if from > to {
		from = to
	}
	return from, to
}

func encode(e meta.StakeEvent) ([]byte, error) {
	bs, err := json.Marshal(e)
	util.DealJsonErr("event.encode", err)
	return bs, err
}

func decode(bs []byte) (meta.StakeEvent, error) {
	var e meta.StakeEvent
	err := json.Unmarshal(bs, &e)
	util.DealJsonErr("event.decode", err)
	return e, err
}
