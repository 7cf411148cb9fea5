// Package ident derives stable UUIDs for records imported from the
// aggregator, so repeated syncs address the same rows without keeping
// any provider-id mapping tables.
package ident

import (
	"crypto/sha256"
	"strings"

	"github.com/google/uuid"
)

// Derive maps a seed string to a UUID. The same seed always yields the
// same id: the seed is hashed and the first 16 bytes are patched with
// the version and variant bits so the result is a well-formed UUID.
func Derive(seed string) uuid.UUID {
	sum := sha256.Sum256([]byte(seed))
	var id uuid.UUID
	copy(id[:], sum[:16])
	id[6] = (id[6] & 0x0f) | 0x40
	id[8] = (id[8] & 0x3f) | 0x80
	return id
}

// ForAccount derives the id for an account scoped to a linked item.
func ForAccount(itemID, externalID string) uuid.UUID {
	return Derive("acct:" + itemID + ":" + externalID)
}

// ForTransaction derives the id for a transaction scoped to a linked item.
func ForTransaction(itemID, externalID string) uuid.UUID {
	return Derive("txn:" + itemID + ":" + externalID)
}

// ForMerchant derives the merchant id from the display name alone, so the
// same merchant seen through different accounts shares one row.
func ForMerchant(name string) uuid.UUID {
	return Derive("merch:" + NormalizeMerchant(name))
}

// NormalizeMerchant lowercases the name and collapses whitespace runs,
// matching how merchant rows are keyed.
func NormalizeMerchant(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
