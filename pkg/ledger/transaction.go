package ledger

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"

	"tweetledger/pkg"
	"tweetledger/pkg/errors"
)

type AccountMeta struct {
	Key        pkg.PublicKey `json:"pubkey" msgpack:"pubkey"`
	IsSigner   bool          `json:"is_signer" msgpack:"is_signer"`
	IsWritable bool          `json:"is_writable" msgpack:"is_writable"`
}

type Instruction struct {
	ProgramID pkg.PublicKey `json:"program_id" msgpack:"program_id"`
	Accounts  []AccountMeta `json:"accounts" msgpack:"accounts"`
	Data      []byte        `json:"data" msgpack:"data"`
}

type Message struct {
	Instructions []Instruction `json:"instructions" msgpack:"instructions"`
}

// Bytes returns the canonical encoding that signers sign.
func (m *Message) Bytes() []byte {
	var buf bytes.Buffer
	var scratch [4]byte

	binary.LittleEndian.PutUint32(scratch[:], uint32(len(m.Instructions)))
	buf.Write(scratch[:])
	for _, ix := range m.Instructions {
		buf.Write(ix.ProgramID[:])
		binary.LittleEndian.PutUint32(scratch[:], uint32(len(ix.Accounts)))
		buf.Write(scratch[:])
		for _, meta := range ix.Accounts {
			buf.Write(meta.Key[:])
			var flags byte
			if meta.IsSigner {
				flags |= 1
			}
			if meta.IsWritable {
				flags |= 2
			}
			buf.WriteByte(flags)
		}
		binary.LittleEndian.PutUint32(scratch[:], uint32(len(ix.Data)))
		buf.Write(scratch[:])
		buf.Write(ix.Data)
	}
	return buf.Bytes()
}

// Signers returns every account marked as signer, in order of first appearance.
func (m *Message) Signers() []pkg.PublicKey {
	seen := make(map[pkg.PublicKey]bool)
	var signers []pkg.PublicKey
	for _, ix := range m.Instructions {
		for _, meta := range ix.Accounts {
			if meta.IsSigner && !seen[meta.Key] {
				seen[meta.Key] = true
				signers = append(signers, meta.Key)
			}
		}
	}
	return signers
}

type TxSignature struct {
	PublicKey pkg.PublicKey `json:"pubkey" msgpack:"pubkey"`
	Signature pkg.Signature `json:"signature" msgpack:"signature"`
}

type Transaction struct {
	Message    Message       `json:"message" msgpack:"message"`
	Signatures []TxSignature `json:"signatures" msgpack:"signatures"`
}

func NewTransaction(ixs ...Instruction) *Transaction {
	return &Transaction{Message: Message{Instructions: ixs}}
}

// Sign adds a signature for every key. Keys that are not signers of the
// message are ignored.
func (tx *Transaction) Sign(keys ...ed25519.PrivateKey) *Transaction {
	msg := tx.Message.Bytes()
	required := make(map[pkg.PublicKey]bool)
	for _, s := range tx.Message.Signers() {
		required[s] = true
	}
	for _, key := range keys {
		pub := pkg.PublicKeyFromEd25519(key.Public().(ed25519.PublicKey))
		if !required[pub] {
			continue
		}
		var sig pkg.Signature
		copy(sig[:], ed25519.Sign(key, msg))
		tx.Signatures = append(tx.Signatures, TxSignature{PublicKey: pub, Signature: sig})
	}
	return tx
}

// ID is the first signature, which identifies the transaction.
func (tx *Transaction) ID() pkg.Signature {
	if len(tx.Signatures) == 0 {
		return pkg.Signature{}
	}
	return tx.Signatures[0].Signature
}

// Verify checks that every signer of the message produced a valid signature.
func (tx *Transaction) Verify() error {
	if len(tx.Message.Instructions) == 0 {
		return errors.InvalidData(errors.PhaseVerify, "transaction has no instructions")
	}

	msg := tx.Message.Bytes()
	sigs := make(map[pkg.PublicKey]pkg.Signature, len(tx.Signatures))
	for _, s := range tx.Signatures {
		sigs[s.PublicKey] = s.Signature
	}

	for _, signer := range tx.Message.Signers() {
		sig, ok := sigs[signer]
		if !ok {
			return errors.New(errors.PhaseVerify, errors.KindMissingSignature).
				Account(signer.String()).
				Build()
		}
		if !ed25519.Verify(signer[:], msg, sig[:]) {
			return errors.New(errors.PhaseVerify, errors.KindInvalidSignature).
				Account(signer.String()).
				Build()
		}
	}
	return nil
}
