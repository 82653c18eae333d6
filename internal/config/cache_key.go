package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// ExamAnswerKey returns the cache key for an exam's question set and answer key
func (r *CacheKeyStruct) ExamAnswerKey(examID string) string {
	return fmt.Sprintf("exam:%s:key", examID)
}

// DraftKey returns the cache key for a pseudonym's autosaved answers
func (r *CacheKeyStruct) DraftKey(examID, pseudonymHash string) string {
	return fmt.Sprintf("exam:%s:draft:%s", examID, pseudonymHash)
}

// RevokedTokenKey returns the cache key marking an evaluator token as logged out
func (r *CacheKeyStruct) RevokedTokenKey(jti string) string {
	return fmt.Sprintf("auth:revoked:%s", jti)
}

// RegistryKey returns the hash key holding every name under suffix
func (r *CacheKeyStruct) RegistryKey(suffix string) string {
	return fmt.Sprintf("registry:%s", suffix)
}

// PaymentSessionKey returns the cache key for a payment session
func (r *CacheKeyStruct) PaymentSessionKey(sessionID string) string {
	return fmt.Sprintf("payment:session:%s", sessionID)
}

var CacheKey = NewCacheKeyStruct()
