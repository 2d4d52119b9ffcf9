package event

import (
	"context"
	"encoding/binary"
	"errors"
	"github.com/ssbcStaker/common"
	"github.com/ssbcStaker/levelDB"
	"github.com/ssbcStaker/meta"
	"strconv"
	"sync"
)

// LevelLog 将事件存到 levelDB，key 为前缀加8字节大端序号，保证按序遍历
type LevelLog struct {
	mu sync.Mutex
	db *levelDB.DB
}

func NewLevelLog(db *levelDB.DB) *LevelLog {
	return &LevelLog{db: db}
}

func seqKey(seq uint64) []byte {
	key := make([]byte, len(common.StakeLogPrefix)+8)
	copy(key, common.StakeLogPrefix)
	binary.BigEndian.PutUint64(key[len(common.StakeLogPrefix):], seq)
	return key
}

func (l *LevelLog) count() (uint64, error) {
	bs, err := l.db.Get(common.StakeLogCountKey)
	if errors.Is(err, levelDB.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(string(bs), 10, 64)
}

func (l *LevelLog) Append(_ context.Context, e meta.StakeEvent) (meta.StakeEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n, err := l.count()
	if err != nil {
		return meta.StakeEvent{}, err
	}
	sealed, err := seal(e, n)
	if err != nil {
		return meta.StakeEvent{}, err
	}
	bs, err := encode(sealed)
	if err != nil {
		return meta.StakeEvent{}, err
	}
	// 事件和计数一起写入
	err = l.db.PutBatch(map[string][]byte{
		string(seqKey(n)):       bs,
		common.StakeLogCountKey: []byte(strconv.FormatUint(n+1, 10)),
	})
	if err != nil {
		return meta.StakeEvent{}, err
	}
	return copyEvent(sealed), nil
}

func (l *LevelLog) Range(_ context.Context, from, to uint64) ([]meta.StakeEvent, error) {
	n, err := l.count()
	if err != nil {
		return nil, err
	}
	from, to = clamp(from, to, n)
	res := make([]meta.StakeEvent, 0, to-from)
	if from == to {
		return res, nil
	}
	var decodeErr error
	err = l.db.Iterate(seqKey(from), seqKey(to), func(_, value []byte) bool {
		e, err := decode(value)
		if err != nil {
			decodeErr = err
			return false
		}
		res = append(res, e)
		return true
	})
	if err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	return res, nil
}

func (l *LevelLog) Len(_ context.Context) (uint64, error) {
	return l.count()
}
