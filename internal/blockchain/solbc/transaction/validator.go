// internal/blockchain/solbc/transaction/validator.go
package transaction

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

type Validator struct {
	logger *zap.Logger
}

func NewValidator(logger *zap.Logger) *Validator {
	return &Validator{
		logger: logger.Named("tx-validator"),
	}
}

// ValidateTransaction checks a signed transaction is ready for submission.
func (v *Validator) ValidateTransaction(tx *solana.Transaction) error {
	if err := v.ValidateSignatures(tx); err != nil {
		return err
	}

	if err := v.ValidateBlockhash(tx); err != nil {
		return err
	}

	if len(tx.Message.Instructions) == 0 {
		return ErrInvalidInstruction
	}

	return nil
}

// ValidateSignatures проверяет, что все обязательные подписи присутствуют и не пустые.
func (v *Validator) ValidateSignatures(tx *solana.Transaction) error {
	required := int(tx.Message.Header.NumRequiredSignatures)
	if required == 0 || len(tx.Signatures) != required {
		return fmt.Errorf("%w: have %d of %d", ErrInvalidSignature, len(tx.Signatures), required)
	}
	for i, sig := range tx.Signatures {
		if sig == (solana.Signature{}) {
			v.logger.Debug("Missing signature", zap.Int("index", i), zap.String("signer", tx.Message.AccountKeys[i].String()))
			return fmt.Errorf("%w: signer %s has not signed", ErrInvalidSignature, tx.Message.AccountKeys[i])
		}
	}
	return nil
}

func (v *Validator) ValidateBlockhash(tx *solana.Transaction) error {
	if tx.Message.RecentBlockhash == (solana.Hash{}) {
		return ErrInvalidBlockhash
	}
	return nil
}
