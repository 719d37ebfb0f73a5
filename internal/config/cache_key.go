package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// AttemptIndexKey returns the key holding the ordered list of attempt ids
func (r *CacheKeyStruct) AttemptIndexKey(namespace string) string {
	return fmt.Sprintf("%s:attempts:index", namespace)
}

// AttemptKey returns the key holding one serialized attempt
func (r *CacheKeyStruct) AttemptKey(namespace, attemptID string) string {
	return fmt.Sprintf("%s:attempt:%s", namespace, attemptID)
}

var CacheKey = NewCacheKeyStruct()
