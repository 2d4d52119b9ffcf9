// Package deploy 生成并读取合约地址簿
//
// 地址簿按链ID索引，记录质押池和受益合约的地址与接口描述，前端据此调用合约。
package deploy

import (
	"encoding/json"
	"errors"
	"fmt"
	"github.com/cloudflare/cfssl/log"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ssbcStaker/common"
	"github.com/ssbcStaker/meta"
	"github.com/ssbcStaker/util"
	"os"
	"path/filepath"
)

var ErrNotDeployed = errors.New("contract not deployed")

// 生成新的合约地址
func NewAddress() (string, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return "", err
	}
	return crypto.PubkeyToAddress(key.PublicKey).Hex(), nil
}

func uint256(name string) meta.ABIParam { return meta.ABIParam{Name: name, Type: "uint256"} }

func addr(name string) meta.ABIParam { return meta.ABIParam{Name: name, Type: "address"} }

// 质押池的接口描述
func StakerABI() []meta.ABIEntry {
	return []meta.ABIEntry{
		{Type: "function", Name: "stake", StateMutability: "payable"},
		{Type: "function", Name: "execute", StateMutability: "nonpayable"},
		{Type: "function", Name: "withdraw", StateMutability: "nonpayable"},
		{Type: "function", Name: "timeLeft", Outputs: []meta.ABIParam{uint256("")}, StateMutability: "view"},
		{Type: "function", Name: "balances", Inputs: []meta.ABIParam{addr("")}, Outputs: []meta.ABIParam{uint256("")}, StateMutability: "view"},
		{Type: "function", Name: "threshold", Outputs: []meta.ABIParam{uint256("")}, StateMutability: "view"},
		{Type: "function", Name: "deadline", Outputs: []meta.ABIParam{uint256("")}, StateMutability: "view"},
		{Type: "function", Name: "openForWithdraw", Outputs: []meta.ABIParam{{Type: "bool"}}, StateMutability: "view"},
		{Type: "function", Name: "exampleExternalContract", Outputs: []meta.ABIParam{addr("")}, StateMutability: "view"},
		{Type: "event", Name: "Stake", Inputs: []meta.ABIParam{addr("staker"), uint256("amount")}},
	}
}

// 受益合约的接口描述
func BeneficiaryABI() []meta.ABIEntry {
	return []meta.ABIEntry{
		{Type: "function", Name: "complete", StateMutability: "payable"},
		{Type: "function", Name: "completed", Outputs: []meta.ABIParam{{Type: "bool"}}, StateMutability: "view"},
	}
}

// Deploy 生成受益合约和质押池的地址并写入 path
func Deploy(path string, chainID int64) (meta.DeploymentMap, error) {
	benef, err := NewAddress()
	if err != nil {
		return nil, err
	}
	pool, err := NewAddress()
	if err != nil {
		return nil, err
	}
	log.Infof("%s deployed at %s", common.BeneficiaryContractName, benef)
	log.Infof("%s deployed at %s", common.StakerContractName, pool)

	deployments, err := Load(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if deployments == nil {
		deployments = meta.DeploymentMap{}
	}
	deployments[chainID] = map[string]meta.ContractExport{
		common.BeneficiaryContractName: {Address: benef, ABI: BeneficiaryABI()},
		common.StakerContractName:      {Address: pool, ABI: StakerABI()},
	}
	if err := Write(path, deployments); err != nil {
		return nil, err
	}
	log.Infof("wrote deployment data to %s", path)
	return deployments, nil
}

// Ensure 返回 chainID 上已有的部署，没有则新部署一次
func Ensure(path string, chainID int64) (meta.DeploymentMap, error) {
	deployments, err := Load(path)
	if err == nil {
		if _, _, err := Addresses(deployments, chainID); err == nil {
			return deployments, nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return Deploy(path, chainID)
}

// Addresses 返回 chainID 上质押池和受益合约的地址
func Addresses(deployments meta.DeploymentMap, chainID int64) (pool, beneficiary string, err error) {
	contracts, ok := deployments[chainID]
	if !ok {
		return "", "", fmt.Errorf("%w: chain %d", ErrNotDeployed, chainID)
	}
	p, ok := contracts[common.StakerContractName]
	if !ok || p.Address == "" {
		return "", "", fmt.Errorf("%w: %s", ErrNotDeployed, common.StakerContractName)
	}
	b, ok := contracts[common.BeneficiaryContractName]
	if !ok || b.Address == "" {
		return "", "", fmt.Errorf("%w: %s", ErrNotDeployed, common.BeneficiaryContractName)
	}
	return p.Address, b.Address, nil
}

func Write(path string, deployments meta.DeploymentMap) error {
	bytes, err := json.MarshalIndent(deployments, "", "  ")
	if err != nil {
		util.DealJsonErr("deploy.Write", err)
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, bytes, 0o644)
}

func Load(path string) (meta.DeploymentMap, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	deployments := meta.DeploymentMap{}
	if err := json.Unmarshal(bytes, &deployments); err != nil {
		util.DealJsonErr("deploy.Load", err)
		return nil, err
	}
	return deployments, nil
}
