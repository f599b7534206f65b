package utils

import (
	"context"
	"crypto/rand"
	"math/big"
	"sync"
	"time"
)

// in-memory fallback store
type codeEntry struct {
	code      string
	expiresAt time.Time
}

var (
	codeStore   = map[string]codeEntry{}
	codeStoreMu sync.Mutex
)

// GenerateVerificationCode creates a numeric code with given length.
func GenerateVerificationCode(n int) string {
	if n <= 0 {
		n = 6
	}
	digits := make([]byte, n)
	for i := 0; i < n; i++ {
		v, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			v = big.NewInt(time.Now().UnixNano() % 10)
		}
		digits[i] = byte('0' + v.Int64())
	}
	return string(digits)
}

func resetKey(email string) string {
	return "reset:email:" + email
}

// SaveResetCode stores a password reset code for an email with TTL. Prefer Redis; fallback to memory.
func SaveResetCode(email, code string, ttl time.Duration) {
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := rc.Set(ctx, resetKey(email), code, ttl).Err(); err == nil {
			return
		}
	}
	codeStoreMu.Lock()
	codeStore[resetKey(email)] = codeEntry{code: code, expiresAt: time.Now().Add(ttl)}
	codeStoreMu.Unlock()
}

// ConsumeResetCode checks a code and consumes it if valid. A code is single-use.
func ConsumeResetCode(email, code string) bool {
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if val, err := rc.GetDel(ctx, resetKey(email)).Result(); err == nil {
			return val == code
		}
	}
	codeStoreMu.Lock()
	defer codeStoreMu.Unlock()
	entry, ok := codeStore[resetKey(email)]
	if !ok {
		return false
	}
	delete(codeStore, resetKey(email))
	if time.Now().After(entry.expiresAt) {
		return false
	}
	return entry.code == code
}

// EmailCooldownTrySet sets a cooldown key for sending reset mail. Returns true if set, false if cooling down.
func EmailCooldownTrySet(email string, cooldown time.Duration) bool {
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if ok, err := rc.SetNX(ctx, "cooldown:email:"+email, "1", cooldown).Result(); err == nil {
			return ok
		}
	}
	key := "cooldown:email:mem:" + email
	codeStoreMu.Lock()
	defer codeStoreMu.Unlock()
	if entry, ok := codeStore[key]; ok && time.Now().Before(entry.expiresAt) {
		return false
	}
	codeStore[key] = codeEntry{code: "1", expiresAt: time.Now().Add(cooldown)}
	return true
}
