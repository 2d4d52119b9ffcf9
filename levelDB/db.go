package levelDB

import (
	"errors"
	"github.com/cloudflare/cfssl/log"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// key 不存在
var ErrNotFound = leveldb.ErrNotFound

type DB struct {
	db *leveldb.DB
}

func InitDB(path string) (*DB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		log.Error("db init err:", err)
		return nil, err
	}
	return &DB{db: db}, nil
}

func (d *DB) Get(key string) ([]byte, error) {
	return d.GetBytes([]byte(key))
}

func (d *DB) GetBytes(key []byte) ([]byte, error) {
	data, err := d.db.Get(key, nil)
	if err != nil {
		if !errors.Is(err, leveldb.ErrNotFound) {
			log.Error("db get err:", err)
		}
		return nil, err
	}
	return data, nil
}

func (d *DB) Put(key string, value []byte) error {
	err := d.db.Put([]byte(key), value, nil)
	if err != nil {
		log.Error("db put err:", err)
	}
	return err
}

func (d *DB) Delete(key string) error {
	err := d.db.Delete([]byte(key), nil)
	if err != nil {
		log.Error("db delete err", err)
	}
	return err
}

// 批量写入，要么全部成功要么全部失败
func (d *DB) PutBatch(kvs map[string][]byte) error {
	batch := new(leveldb.Batch)
	for k, v := range kvs {
		batch.Put([]byte(k), v)
	}
	err := d.db.Write(batch, nil)
	if err != nil {
		log.Error("db batch write err:", err)
	}
	return err
}

// 按 key 顺序遍历 [start, limit) 区间，fn 返回 false 时停止
// key 和 value 在下一次迭代后失效，需要保留时自行复制
func (d *DB) Iterate(start, limit []byte, fn func(key, value []byte) bool) error {
	iter := d.db.NewIterator(&util.Range{Start: start, Limit: limit}, nil)
	defer iter.Release()
	for iter.Next() {
		if !fn(iter.Key(), iter.Value()) {
			break
		}
	}
	return iter.Error()
}

func (d *DB) Close() error {
	return d.db.Close()
}
