// Package persistence contains helpers shared by the store gateway implementations.
package persistence

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// DefaultPageSize is the number of items a gateway returns per query page when none is configured.
const DefaultPageSize = 100

// MaxBatchSize is the number of items written per batch call.
const MaxBatchSize = 25

// Key is the last item of a query page; the next page resumes strictly after it.
type Key struct {
	StartTime time.Time
	ID        string
}

// EncodeToken serialises a continuation key. A nil key encodes to "".
func EncodeToken(k *Key) string {
	if k == nil {
		return ""
	}
	raw := fmt.Sprintf("%s|%s", k.StartTime.UTC().Format(time.RFC3339Nano), k.ID)
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

// DecodeToken parses a continuation token. The empty token decodes to nil.
func DecodeToken(token string) (*Key, error) {
	if strings.TrimSpace(token) == "" {
		return nil, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, err
	}
	parts := strings.SplitN(string(decoded), "|", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid continuation token format")
	}
	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return nil, err
	}
	return &Key{StartTime: ts, ID: parts[1]}, nil
}

// After reports whether an item at (start, id) sorts strictly after k.
func (k *Key) After(start time.Time, id string) bool {
	if k == nil {
		return true
	}
	if start.Equal(k.StartTime) {
		return id > k.ID
	}
	return start.After(k.StartTime)
}

// Chunk splits n items into consecutive [lo, hi) ranges of at most size items.
func Chunk(n, size int) [][2]int {
	if size <= 0 {
		size = MaxBatchSize
	}
	var out [][2]int
	for lo := 0; lo < n; lo += size {
		hi := lo + size
		if hi > n {
			hi = n
		}
		out = append(out, [2]int{lo, hi})
	}
	return out
}
