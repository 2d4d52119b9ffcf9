package contract

import (
	"encoding/json"
	"errors"
	"github.com/ssbcStaker/common"
	"github.com/ssbcStaker/levelDB"
	"github.com/ssbcStaker/meta"
	"github.com/ssbcStaker/util"
)

// 持久化质押池快照
func SaveState(db *levelDB.DB, state meta.PoolState) error {
	bs, err := json.Marshal(state)
	if err != nil {
		util.DealJsonErr("SaveState", err)
		return err
	}
	return db.Put(common.PoolStateKey, bs)
}

// 读取质押池快照，不存在时 ok 为 false
func LoadState(db *levelDB.DB) (state meta.PoolState, ok bool, err error) {
	bs, err := db.Get(common.PoolStateKey)
	if errors.Is(err, levelDB.ErrNotFound) {
		return meta.PoolState{}, false, nil
	}
	if err != nil {
		return meta.PoolState{}, false, err
	}
	if err := json.Unmarshal(bs, &state); err != nil {
		util.DealJsonErr("LoadState", err)
		return meta.PoolState{}, false, err
	}
	return state, true, nil
}
