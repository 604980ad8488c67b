// internal/bundle/tip.go
package bundle

import (
	"math/rand/v2"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"

	"github.com/rovshanmuradov/solana-bundler/internal/wallet"
)

// TipAccounts are the block-engine tip receivers. Any of them is accepted.
var TipAccounts = []solana.PublicKey{
	solana.MustPublicKeyFromBase58("96gYZGLnJYVFmbjzopPSU6QiEV5fGqZNyN9nmNhvrZU5"),
	solana.MustPublicKeyFromBase58("HFqU5x63VTqvQss8hp11i4wVV8bD44PvwucfZ2bU7gRe"),
	solana.MustPublicKeyFromBase58("Cw8CFyM9FkoMi7K7Crf6HNQqf4uEMzpKw6QNghXLvLkY"),
	solana.MustPublicKeyFromBase58("ADaUMid9yfUytqMBgopwjb2DTLSokTSzL1zt6iGPaS49"),
	solana.MustPublicKeyFromBase58("DfXygSm4jCyNCybVYYK6DwvWqjKee8pbDmJGcLWNDXjh"),
	solana.MustPublicKeyFromBase58("ADuUkR4vqLUMWXxW9gh6D6L8pMSawimctcNZ5pGwDcEt"),
	solana.MustPublicKeyFromBase58("DttWaMuVvTiduZRnguLF7jNxTgiMBZ1hyAumKUiL2KRL"),
	solana.MustPublicKeyFromBase58("3AVi9Tg9Uo68tJfuvoKvqKNWKkC5wPdSSdeBnizKZ6jT"),
}

// RandomTipAccount spreads tips over the receivers to avoid write-lock contention.
func RandomTipAccount() solana.PublicKey {
	return TipAccounts[rand.IntN(len(TipAccounts))]
}

// tipSet builds the tip transfer as its own instruction set.
func tipSet(tip Tip, account solana.PublicKey) InstructionSet {
	return InstructionSet{
		Label: "tip",
		Instructions: []solana.Instruction{
			system.NewTransferInstruction(tip.Lamports, tip.Payer.PublicKey, account).Build(),
		},
		Signers: []*wallet.Wallet{tip.Payer},
	}
}
