package wallet

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestNewWallet(t *testing.T) {
	key := solana.NewWallet().PrivateKey
	w, err := NewWallet(" " + key.String() + "\n")
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey(), w.PublicKey)

	_, err = NewWallet("not-base58-0OIl")
	assert.Error(t, err)

	_, err = NewWallet(solana.NewWallet().PublicKey().String())
	assert.ErrorContains(t, err, "invalid private key length")
}

func TestLoadWallets_CSVKeepsOrder(t *testing.T) {
	a, b, c := solana.NewWallet().PrivateKey, solana.NewWallet().PrivateKey, solana.NewWallet().PrivateKey
	path := writeFile(t, "wallets.csv", fmt.Sprintf("name,private_key\ncreator,%s\nbuyer2,%s\nbuyer1,%s\n", a, b, c))

	names, wallets, err := LoadWallets(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"creator", "buyer2", "buyer1"}, names)
	assert.Equal(t, c.PublicKey(), wallets["buyer1"].PublicKey)
}

func TestLoadWallets_YAML(t *testing.T) {
	a, b := solana.NewWallet().PrivateKey, solana.NewWallet().PrivateKey
	path := writeFile(t, "wallets.yaml", fmt.Sprintf(`
wallets:
  - name: main
    private_key: %s
  - name: second
    private_key: %s
`, a, b))

	names, wallets, err := LoadWallets(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"main", "second"}, names)
	assert.Equal(t, b.PublicKey(), wallets["second"].PublicKey)
}

func TestLoadWallets_Errors(t *testing.T) {
	key := solana.NewWallet().PrivateKey
	tests := []struct {
		name string
		file string
		body string
	}{
		{"header only", "w.csv", "name,private_key\n"},
		{"duplicate name", "w.csv", fmt.Sprintf("name,key\na,%s\na,%s\n", key, key)},
		{"bad key", "w.csv", "name,key\na,xyz\n"},
		{"yaml empty", "w.yaml", "wallets: []\n"},
		{"yaml missing name", "w.yml", fmt.Sprintf("wallets:\n  - private_key: %s\n", key)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := LoadWallets(writeFile(t, tt.file, tt.body))
			assert.Error(t, err)
		})
	}

	_, _, err := LoadWallets(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestGetATA_Cached(t *testing.T) {
	w := FromPrivateKey(solana.NewWallet().PrivateKey)
	mint := solana.NewWallet().PublicKey()

	first, err := w.GetATA(mint)
	require.NoError(t, err)
	expected, _, err := solana.FindAssociatedTokenAddress(w.PublicKey, mint)
	require.NoError(t, err)
	assert.Equal(t, expected, first)

	second, err := w.GetATA(mint)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	wsol, err := w.WrappedSOLAccount()
	require.NoError(t, err)
	assert.NotEqual(t, first, wsol)
}

func TestKeyGetter_SignsForAllWallets(t *testing.T) {
	payer := FromPrivateKey(solana.NewWallet().PrivateKey)
	other := FromPrivateKey(solana.NewWallet().PrivateKey)

	tx, err := solana.NewTransaction([]solana.Instruction{
		system.NewTransferInstruction(1, payer.PublicKey, other.PublicKey).Build(),
		system.NewTransferInstruction(1, other.PublicKey, payer.PublicKey).Build(),
	}, solana.Hash(solana.NewWallet().PublicKey()), solana.TransactionPayer(payer.PublicKey))
	require.NoError(t, err)

	_, err = tx.Sign(KeyGetter(payer, nil, other))
	require.NoError(t, err)
	assert.NoError(t, tx.VerifySignatures())

	missing, err := solana.NewTransaction([]solana.Instruction{
		system.NewTransferInstruction(1, other.PublicKey, payer.PublicKey).Build(),
	}, solana.Hash(solana.NewWallet().PublicKey()), solana.TransactionPayer(other.PublicKey))
	require.NoError(t, err)
	assert.Error(t, payer.SignTransaction(missing))
}

func TestCreateATAIdempotentInstruction(t *testing.T) {
	payer := solana.NewWallet().PublicKey()
	owner := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()

	ix, err := CreateAssociatedTokenAccountIdempotentInstruction(payer, owner, mint)
	require.NoError(t, err)
	assert.Equal(t, solana.SPLAssociatedTokenAccountProgramID, ix.ProgramID())

	data, err := ix.Data()
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, data)

	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	require.NoError(t, err)
	accounts := ix.Accounts()
	require.Len(t, accounts, 6)
	assert.Equal(t, ata, accounts[1].PublicKey)
	assert.True(t, accounts[0].IsSigner)
}
