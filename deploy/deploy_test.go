package deploy

import (
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ssbcStaker/common"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"testing"
)

func TestDeployWritesAddressBook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "deployments.json")
	deployments, err := Deploy(path, 31337)
	require.NoError(t, err)

	pool, benef, err := Addresses(deployments, 31337)
	require.NoError(t, err)
	require.True(t, ethcommon.IsHexAddress(pool))
	require.True(t, ethcommon.IsHexAddress(benef))
	require.True(t, pool != benef)

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, deployments, loaded)
	require.Equal(t, len(StakerABI()), len(loaded[31337][common.StakerContractName].ABI))
}

func TestEnsureReusesDeployment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deployments.json")
	first, err := Ensure(path, 1)
	require.NoError(t, err)
	second, err := Ensure(path, 1)
	require.NoError(t, err)
	require.Equal(t, second, first)

	// 其他链追加部署，已有的链不变
	both, err := Ensure(path, 2)
	require.NoError(t, err)
	require.Equal(t, 2, len(both))
	require.Equal(t, first[1], both[1])
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "none.json"))
	require.ErrorIs(t, err, os.ErrNotExist)

	_, _, err = Addresses(nil, 1)
	require.ErrorIs(t, err, ErrNotDeployed)
}
