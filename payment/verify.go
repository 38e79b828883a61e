package payment

import (
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/vitwit/jobcredits/clients"
	"github.com/vitwit/jobcredits/types"
)

// VerifySigned checks the wire form of a wallet-signed transaction against the
// intent it was built for. The wallet may have rewritten the transaction, so the
// check runs on the serialized bytes rather than on the in-memory value, and the
// decoded transaction is the one to submit.
func VerifySigned(tx *solana.Transaction, intent *types.PurchaseIntent) (*solana.Transaction, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, types.NewError(types.ErrSubmissionFailed, err, "failed to serialize transaction")
	}

	decoded, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, types.NewError(types.ErrSubmissionFailed, err, "failed to decode signed transaction")
	}

	payer, err := solana.PublicKeyFromBase58(intent.Payer)
	if err != nil {
		return nil, types.NewError(types.ErrSubmissionFailed, err, "invalid payer %s", intent.Payer)
	}
	recipient, err := solana.PublicKeyFromBase58(intent.Recipient)
	if err != nil {
		return nil, types.NewError(types.ErrSubmissionFailed, err, "invalid recipient %s", intent.Recipient)
	}

	if err := clients.ExpectTransfer(decoded, payer, recipient, intent.AmountLamports); err != nil {
		return nil, types.NewError(types.ErrSigningRejected, err, "signed transaction does not match purchase %s", intent.ID)
	}
	return decoded, nil
}
