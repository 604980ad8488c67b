// ==================================
// File: internal/wallet/wallet.go
// ==================================
package wallet

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"gopkg.in/yaml.v3"
)

// Wallet представляет кошелёк Solana, ключи которого передаёт вызывающая сторона.
type Wallet struct {
	PrivateKey solana.PrivateKey
	PublicKey  solana.PublicKey

	mu       sync.Mutex
	ataCache map[solana.PublicKey]solana.PublicKey // Кеш для ассоциированных адресов токен-аккаунтов (ATA)
}

// NewWallet создаёт новый кошелёк из base58-encoded приватного ключа.
func NewWallet(privateKeyBase58 string) (*Wallet, error) {
	privateKeyBytes, err := base58.Decode(strings.TrimSpace(privateKeyBase58))
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}
	if len(privateKeyBytes) != 64 {
		return nil, fmt.Errorf("invalid private key length: expected 64 bytes, got %d", len(privateKeyBytes))
	}
	return FromPrivateKey(solana.PrivateKey(privateKeyBytes)), nil
}

// FromPrivateKey wraps an already decoded keypair.
func FromPrivateKey(key solana.PrivateKey) *Wallet {
	return &Wallet{
		PrivateKey: key,
		PublicKey:  key.PublicKey(),
		ataCache:   make(map[solana.PublicKey]solana.PublicKey),
	}
}

// LoadWallets загружает кошельки из CSV-файла с колонками: [Name, PrivateKeyBase58].
// Файлы .yaml/.yml читаются через LoadWalletsYAML.
// Порядок строк сохраняется.
func LoadWallets(path string) ([]string, map[string]*Wallet, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadWalletsYAML(path)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(records) < 2 {
		return nil, nil, fmt.Errorf("CSV file is empty or missing data")
	}

	names := make([]string, 0, len(records)-1)
	wallets := make(map[string]*Wallet, len(records)-1)
	for i, record := range records[1:] {
		if len(record) != 2 {
			return nil, nil, fmt.Errorf("row %d: expected 2 columns, got %d", i+2, len(record))
		}
		name := strings.TrimSpace(record[0])
		if _, dup := wallets[name]; dup {
			return nil, nil, fmt.Errorf("row %d: duplicate wallet name %q", i+2, name)
		}
		w, err := NewWallet(record[1])
		if err != nil {
			return nil, nil, fmt.Errorf("row %d (%s): %w", i+2, name, err)
		}
		names = append(names, name)
		wallets[name] = w
	}
	return names, wallets, nil
}

// WalletConfig represents the structure of wallets YAML file
type WalletConfig struct {
	Wallets []struct {
		Name       string `yaml:"name"`
		PrivateKey string `yaml:"private_key"`
	} `yaml:"wallets"`
}

// LoadWalletsYAML загружает кошельки из YAML-файла.
func LoadWalletsYAML(path string) ([]string, map[string]*Wallet, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read file: %w", err)
	}

	var config WalletConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(config.Wallets) == 0 {
		return nil, nil, fmt.Errorf("no wallets in %s", path)
	}

	names := make([]string, 0, len(config.Wallets))
	wallets := make(map[string]*Wallet, len(config.Wallets))
	for i, entry := range config.Wallets {
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			return nil, nil, fmt.Errorf("wallet %d: name is required", i)
		}
		if _, dup := wallets[name]; dup {
			return nil, nil, fmt.Errorf("duplicate wallet name %q", name)
		}
		w, err := NewWallet(entry.PrivateKey)
		if err != nil {
			return nil, nil, fmt.Errorf("wallet %s: %w", name, err)
		}
		names = append(names, name)
		wallets[name] = w
	}
	return names, wallets, nil
}

// GetATA возвращает адрес ассоциированного токен-аккаунта (ATA) для заданного токена (mint).
// Если адрес уже был вычислен ранее, возвращается значение из кеша.
func (w *Wallet) GetATA(mint solana.PublicKey) (solana.PublicKey, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if ata, ok := w.ataCache[mint]; ok {
		return ata, nil
	}
	ata, _, err := solana.FindAssociatedTokenAddress(w.PublicKey, mint)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if w.ataCache == nil {
		w.ataCache = make(map[solana.PublicKey]solana.PublicKey)
	}
	w.ataCache[mint] = ata
	return ata, nil
}

// WrappedSOLAccount returns the wallet's wrapped-SOL associated token account.
func (w *Wallet) WrappedSOLAccount() (solana.PublicKey, error) {
	return w.GetATA(solana.WrappedSol)
}

// CreateAssociatedTokenAccountIdempotentInstruction creates an instruction to create an associated token account
func CreateAssociatedTokenAccountIdempotentInstruction(payer, wallet, mint solana.PublicKey) (solana.Instruction, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(wallet, mint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive ATA for %s: %w", mint, err)
	}

	return solana.NewInstruction(
		solana.SPLAssociatedTokenAccountProgramID,
		[]*solana.AccountMeta{
			{PublicKey: payer, IsWritable: true, IsSigner: true},
			{PublicKey: ata, IsWritable: true, IsSigner: false},
			{PublicKey: wallet, IsWritable: false, IsSigner: false},
			{PublicKey: mint, IsWritable: false, IsSigner: false},
			{PublicKey: solana.SystemProgramID, IsWritable: false, IsSigner: false},
			{PublicKey: solana.TokenProgramID, IsWritable: false, IsSigner: false},
		},
		[]byte{1}, // Instruction code 1 for create idempotent
	), nil
}

// KeyGetter returns a signing callback for solana.Transaction.Sign covering all wallets.
func KeyGetter(wallets ...*Wallet) func(solana.PublicKey) *solana.PrivateKey {
	keys := make(map[solana.PublicKey]*solana.PrivateKey, len(wallets))
	for _, w := range wallets {
		if w == nil {
			continue
		}
		keys[w.PublicKey] = &w.PrivateKey
	}
	return func(key solana.PublicKey) *solana.PrivateKey {
		return keys[key]
	}
}

// SignTransaction подписывает транзакцию с помощью приватного ключа кошелька.
func (w *Wallet) SignTransaction(tx *solana.Transaction) error {
	_, err := tx.Sign(KeyGetter(w))
	return err
}

// String возвращает строковое представление кошелька (его публичный ключ).
func (w *Wallet) String() string {
	return w.PublicKey.String()
}
