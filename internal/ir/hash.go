package ir

import (
	"crypto/sha256"
	"encoding/hex"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainModule   = "eir/module/v1"
	DomainFunction = "eir/function/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint returns the content address of a module: the hash of its
// printed form. Structurally identical modules share a fingerprint.
func Fingerprint(m *Module) string {
	return hashWithDomain(DomainModule, []byte(FormatModule(m)))
}

// FunctionFingerprint returns the content address of one function.
func FunctionFingerprint(f *Function) string {
	return hashWithDomain(DomainFunction, []byte(FormatFunction(f)))
}

// TextFingerprint returns the fingerprint of an already printed module.
// TextFingerprint(FormatModule(m)) == Fingerprint(m).
func TextFingerprint(text string) string {
	return hashWithDomain(DomainModule, []byte(text))
}
