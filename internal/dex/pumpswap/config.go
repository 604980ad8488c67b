// =============================
// File: internal/dex/pumpswap/config.go
// =============================
package pumpswap

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

var (
	// PumpSwapProgramID - AMM, куда мигрируют завершённые кривые Pump.fun.
	PumpSwapProgramID = solana.MustPublicKeyFromBase58("pAMMBay6oceH9fJKBRHGP5D4bD4sWpmSwMn52FMfXEA")

	// MainnetFeeRecipients are the protocol fee recipients listed in the global config.
	MainnetFeeRecipients = []solana.PublicKey{
		solana.MustPublicKeyFromBase58("62qc2CNXwrYqQScmEdiZFFAnJR262PxWEuNQtxfafNgV"),
		solana.MustPublicKeyFromBase58("7VtfL8fvgNfhz17qKRMjzQEXgbdpnHHHQRh54R9jP2RJ"),
		solana.MustPublicKeyFromBase58("7hTckgnGnLQR6sdH7YkqFTAA7VwTfYFaZ6EhEsU3saCX"),
		solana.MustPublicKeyFromBase58("9rPYyANsfQZw3DnDmKE3YCQF5E8oD89UXoHn9JFEhJUz"),
		solana.MustPublicKeyFromBase58("AVmoTthdrX6tKt4nDjco2D775W2YK3sDhxPcMmzUAmTY"),
		solana.MustPublicKeyFromBase58("FWsW1xNtWscwNmKv6wVsU1iTzRN6wmmk3MjxRP5tT7hz"),
		solana.MustPublicKeyFromBase58("G5UZAVbAf46s7cKWoyKu8kYTip9DGTpbLZ2qa9Aq69dP"),
		solana.MustPublicKeyFromBase58("JCRGumoE9Qi5BBgULTgdgTLjSgkCMSbF62ZZfGs84JeU"),
	}
)

// Instruction discriminators extracted from the IDL
var (
	buyDiscriminator  = []byte{102, 6, 61, 18, 1, 218, 235, 234}
	sellDiscriminator = []byte{51, 230, 133, 164, 1, 127, 131, 173}
)

// DefaultFeeBps = LP 20 + protocol 5.
const DefaultFeeBps uint16 = 25

// DeriveGlobalConfig вычисляет PDA глобальной конфигурации.
func DeriveGlobalConfig() (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{[]byte("global_config")}, PumpSwapProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive global config address: %w", err)
	}
	return addr, nil
}

// DeriveEventAuthority вычисляет PDA event authority программы.
func DeriveEventAuthority() (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{[]byte("__event_authority")}, PumpSwapProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive event authority: %w", err)
	}
	return addr, nil
}

// DerivePoolAddress returns the pool PDA for (index, creator, base, quote).
func DerivePoolAddress(index uint16, creator, baseMint, quoteMint solana.PublicKey) (solana.PublicKey, error) {
	indexBytes := make([]byte, 2)
	binary.LittleEndian.PutUint16(indexBytes, index)

	addr, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("pool"), indexBytes, creator.Bytes(), baseMint.Bytes(), quoteMint.Bytes()},
		PumpSwapProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive pool address: %w", err)
	}
	return addr, nil
}

// DeriveCreatorVault returns the creator vault authority and its wrapped-SOL account.
func DeriveCreatorVault(coinCreator, quoteMint solana.PublicKey) (authority, ata solana.PublicKey, err error) {
	authority, _, err = solana.FindProgramAddress(
		[][]byte{[]byte("creator_vault"), coinCreator.Bytes()},
		PumpSwapProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, fmt.Errorf("failed to derive creator vault: %w", err)
	}
	ata, _, err = solana.FindAssociatedTokenAddress(authority, quoteMint)
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, fmt.Errorf("failed to derive creator vault ata: %w", err)
	}
	return authority, ata, nil
}
