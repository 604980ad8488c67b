// internal/bundle/codec.go
package bundle

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// Serialize encodes a signed transaction in the base58 wire form relays accept.
func Serialize(tx *solana.Transaction) (string, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to marshal transaction: %w", err)
	}
	return base58.Encode(raw), nil
}

// Deserialize decodes the base58 wire form back into a transaction.
func Deserialize(encoded string) (*solana.Transaction, error) {
	raw, err := base58.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid base58 transaction: %w", err)
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}
	return tx, nil
}

// EncodeBundle serializes every transaction of the bundle in order.
func EncodeBundle(b *Bundle) ([]string, error) {
	out := make([]string, 0, len(b.Transactions))
	for i, tx := range b.Transactions {
		enc, err := Serialize(tx)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		out = append(out, enc)
	}
	return out, nil
}
