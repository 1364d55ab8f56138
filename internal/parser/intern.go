package parser

import (
	"sync"
)

// StringIntern shares topic and field names across decoded recordings.
// The same few hundred names repeat in every log of a fleet.
type StringIntern struct {
	mu   sync.RWMutex
	pool map[string]string
}

// NewStringIntern creates a new string interner.
func NewStringIntern() *StringIntern {
	return &StringIntern{
		pool: make(map[string]string, 1024),
	}
}

// MaxInternPoolSize bounds the pool; names past the limit are returned as is.
const MaxInternPoolSize = 100000

// Intern returns the canonical version of s.
func (si *StringIntern) Intern(s string) string {
	si.mu.RLock()
	pooled, ok := si.pool[s]
	full := len(si.pool) >= MaxInternPoolSize
	si.mu.RUnlock()
	if ok {
		return pooled
	}
	if full {
		return s
	}

	si.mu.Lock()
	defer si.mu.Unlock()
	if pooled, ok := si.pool[s]; ok {
		return pooled
	}
	if len(si.pool) >= MaxInternPoolSize {
		return s
	}
	si.pool[s] = s
	return s
}

// Len returns the number of unique strings in the pool.
func (si *StringIntern) Len() int {
	si.mu.RLock()
	defer si.mu.RUnlock()
	return len(si.pool)
}

// Clear removes all interned strings.
func (si *StringIntern) Clear() {
	si.mu.Lock()
	defer si.mu.Unlock()
	si.pool = make(map[string]string, 1024)
}

var globalIntern = NewStringIntern()

// GetGlobalIntern returns the name pool shared by all decoders.
func GetGlobalIntern() *StringIntern {
	return globalIntern
}

// ResetGlobalIntern clears the shared name pool.
func ResetGlobalIntern() {
	globalIntern.Clear()
}
