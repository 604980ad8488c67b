// =============================
// File: internal/dex/pumpfun/config.go
// =============================
package pumpfun

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Known PumpFun protocol addresses
var (
	// Program ID for Pump.fun protocol
	PumpFunProgramID = solana.MustPublicKeyFromBase58("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")

	// Event authority for the Pump.fun protocol
	PumpFunEventAuth = solana.MustPublicKeyFromBase58("Ce6TQqeHC9p8KetsN6JsjHK7UTZk7nasjjnr7XxXp9F1")
)

// Instruction discriminators (anchor "global:buy" / "global:sell").
var (
	buyDiscriminator  = []byte{102, 6, 61, 18, 1, 218, 235, 234}
	sellDiscriminator = []byte{51, 230, 133, 164, 1, 127, 131, 173}
)

// DefaultFeeBps - комиссия протокола, если глобальный аккаунт не прочитан.
const DefaultFeeBps uint16 = 100

// DeriveGlobal returns the program-wide config PDA.
func DeriveGlobal() (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{[]byte("global")}, PumpFunProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive global: %w", err)
	}
	return addr, nil
}

// DeriveBondingCurve вычисляет PDA кривой и её токен-аккаунт для mint.
func DeriveBondingCurve(mint solana.PublicKey) (curve, associatedCurve solana.PublicKey, err error) {
	curve, _, err = solana.FindProgramAddress(
		[][]byte{[]byte("bonding-curve"), mint.Bytes()},
		PumpFunProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, fmt.Errorf("failed to derive bonding curve: %w", err)
	}
	associatedCurve, _, err = solana.FindAssociatedTokenAddress(curve, mint)
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, fmt.Errorf("failed to derive associated bonding curve: %w", err)
	}
	return curve, associatedCurve, nil
}

// DeriveCreatorVault returns the vault collecting creator fees.
func DeriveCreatorVault(creator solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("creator-vault"), creator.Bytes()},
		PumpFunProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive creator vault: %w", err)
	}
	return addr, nil
}
