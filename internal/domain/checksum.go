package domain

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
)

// BatchChecksum is a structural hash over the batch id and its ordered postings.
// Amounts are hashed in their canonical decimal form so 1.50 and 1.5 agree.
// Descriptions are not part of the content being held.
func BatchChecksum(batch PostingBatch) string {
	h := sha256.New()
	writeInt(h, batch.ID)
	writeInt(h, int64(len(batch.Postings)))

	for _, p := range batch.Postings {
		writeInt(h, p.FromAccount.ID)
		writeString(h, p.FromAccount.Currency)
		writeInt(h, p.ToAccount.ID)
		writeString(h, p.ToAccount.Currency)
		writeString(h, p.Amount.String())
		writeString(h, p.Currency)
	}

	return hex.EncodeToString(h.Sum(nil))
}

func writeInt(h hash.Hash, v int64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	h.Write(buf[:])
}

// writeString is length-prefixed so adjacent fields cannot run together.
func writeString(h hash.Hash, s string) {
	writeInt(h, int64(len(s)))
	h.Write([]byte(s))
}
