package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashString(t *testing.T) {
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		HashString(""))
	assert.NotEqual(t, HashString("Where is my order?"), HashString("where is my order?"))
}

func TestCacheKey(t *testing.T) {
	key := CacheKey("Jordan", "verdict", "gender")
	assert.Equal(t, "verdict:gender:"+HashString("Jordan"), key)
	assert.Equal(t, HashString("x"), CacheKey("x"))
}
