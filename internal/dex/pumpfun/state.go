// =============================
// File: internal/dex/pumpfun/state.go
// =============================
package pumpfun

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Account discriminators
var (
	bondingCurveDiscriminator = [8]byte{23, 183, 248, 55, 96, 216, 172, 96}
	globalDiscriminator       = [8]byte{167, 232, 232, 177, 200, 108, 114, 127}
)

// curveLayout - фиксированная часть аккаунта кривой; creator дописан позже
// и у старых кривых отсутствует.
type curveLayout struct {
	Discriminator        [8]byte
	VirtualTokenReserves uint64
	VirtualSolReserves   uint64
	RealTokenReserves    uint64
	RealSolReserves      uint64
	TokenTotalSupply     uint64
	Complete             bool
}

const curveCreatorOffset = 8 + 8*5 + 1

// CurveState is the decoded bonding-curve account.
type CurveState struct {
	VirtualTokenReserves uint64
	VirtualSolReserves   uint64
	RealTokenReserves    uint64
	RealSolReserves      uint64
	TokenTotalSupply     uint64
	Complete             bool
	Creator              solana.PublicKey
}

// ParseCurveState decodes bonding-curve account data.
func ParseCurveState(data []byte) (*CurveState, error) {
	var layout curveLayout
	if err := bin.NewBorshDecoder(data).Decode(&layout); err != nil {
		return nil, fmt.Errorf("failed to decode bonding curve: %w", err)
	}
	if !bytes.Equal(layout.Discriminator[:], bondingCurveDiscriminator[:]) {
		return nil, fmt.Errorf("invalid discriminator for bonding curve")
	}

	state := &CurveState{
		VirtualTokenReserves: layout.VirtualTokenReserves,
		VirtualSolReserves:   layout.VirtualSolReserves,
		RealTokenReserves:    layout.RealTokenReserves,
		RealSolReserves:      layout.RealSolReserves,
		TokenTotalSupply:     layout.TokenTotalSupply,
		Complete:             layout.Complete,
	}
	if len(data) >= curveCreatorOffset+solana.PublicKeyLength {
		state.Creator = solana.PublicKeyFromBytes(data[curveCreatorOffset : curveCreatorOffset+solana.PublicKeyLength])
	}
	return state, nil
}

// GlobalAccount holds the fields of the program config the swap needs.
type GlobalAccount struct {
	Discriminator               [8]byte
	Initialized                 bool
	Authority                   solana.PublicKey
	FeeRecipient                solana.PublicKey
	InitialVirtualTokenReserves uint64
	InitialVirtualSolReserves   uint64
	InitialRealTokenReserves    uint64
	TokenTotalSupply            uint64
	FeeBasisPoints              uint64
}

// ParseGlobalAccount decodes the program's global account.
func ParseGlobalAccount(data []byte) (*GlobalAccount, error) {
	var global GlobalAccount
	if err := bin.NewBorshDecoder(data).Decode(&global); err != nil {
		return nil, fmt.Errorf("failed to decode global account: %w", err)
	}
	if !bytes.Equal(global.Discriminator[:], globalDiscriminator[:]) {
		return nil, fmt.Errorf("invalid discriminator for global account")
	}
	return &global, nil
}
