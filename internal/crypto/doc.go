// Package crypto provides field encryption for haredb.
//
// Encryption uses XChaCha20-Poly1305 with:
//   - the 32-byte key held by the vault, read only inside
//     vault.WithReadOnlyAccess
//   - a 24-byte random nonce per value
//   - a 24-byte synthetic nonce per key (HMAC-SHA256 of the key under a
//     derived subkey) so that encrypted keys can be looked up
//   - a 16-byte Poly1305 tag; a wrong key or any flipped byte fails closed
//
// Serialized form: base64(nonce || ciphertext || tag).
//
// Memory safety:
//   - plaintext is copied into a locked memguard buffer for the duration
//     of Seal and destroyed afterwards
//   - use ClearBytes() to zero other sensitive data after use
package crypto
