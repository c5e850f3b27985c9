package token

import (
	"crypto/md5"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Digest hashes a token/fingerprint binding to its stored form.
// The algorithm is a deployment contract: it must match whatever the
// login service used when it wrote the session record, or every
// verification will fail on the hash check.
type Digest func(s string) string

// MD5Hex is the digest used by existing deployments.
func MD5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Blake2bHex is a faster digest for deployments issued with blake2b.
func Blake2bHex(s string) string {
	sum := blake2b.Sum256([]byte(s))
	return hex.EncodeToString(sum[:16])
}

// Bind computes the binding hash of a token and the fingerprint of the
// client presenting it.
func Bind(d Digest, token, fingerprint string) string {
	return d(token + fingerprint)
}
