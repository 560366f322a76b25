package redis

import "fmt"

const (
	// KeyPrefixCollection is the prefix for cached session collections
	KeyPrefixCollection = "bookmarks:collection:"
)

// CollectionKey returns the Redis key for a session's collection
func CollectionKey(sessionID string) string {
	return KeyPrefixCollection + sessionID
}

// ExtractSessionID extracts the session ID from a collection key
func ExtractSessionID(key string) (string, error) {
	if len(key) <= len(KeyPrefixCollection) || key[:len(KeyPrefixCollection)] != KeyPrefixCollection {
		return "", fmt.Errorf("invalid collection key: %s", key)
	}
	return key[len(KeyPrefixCollection):], nil
}
