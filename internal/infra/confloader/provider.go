package confloader

import (
	"errors"
	"strings"
)

// ErrReadBytesNotSupported is returned when ReadBytes is called on a map provider.
var ErrReadBytesNotSupported = errors.New("confloader: ReadBytes not supported by map provider")

// mapProvider feeds a flattened map into koanf. Keys containing dots are
// expanded into nested sections.
type mapProvider map[string]any

// ReadBytes is not supported; koanf falls back to Read.
func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, ErrReadBytesNotSupported
}

// Read returns the configuration map, unflattened on ".".
func (m mapProvider) Read() (map[string]any, error) {
	out := make(map[string]any, len(m))
	for key, value := range m {
		insert(out, strings.Split(key, "."), value)
	}
	return out, nil
}

func insert(dst map[string]any, path []string, value any) {
	for _, p := range path[:len(path)-1] {
		next, ok := dst[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			dst[p] = next
		}
		dst = next
	}
	dst[path[len(path)-1]] = value
}
