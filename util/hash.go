package util

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"github.com/cloudflare/cfssl/log"
)

//计算hash摘要
func CalculateHash(msg []byte) ([]byte, error) {
	h := sha256.New()
	if _, err := h.Write(msg); err != nil {
		log.Info(err)
		return nil, err
	}
	return h.Sum(nil), nil
}

//计算任意结构的hash，返回带0x前缀的hex
func CalculateJsonHash(v interface{}) (string, error) {
	jb, err := json.Marshal(v)
	if err != nil {
		DealJsonErr("CalculateJsonHash", err)
		return "", err
	}
	hashed, err := CalculateHash(jb)
	if err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(hashed), nil
}
