package core

import (
	"strconv"

	"github.com/zeebo/xxh3"
)

// Fingerprint hashes everything a reconciliation depends on: the grid cells,
// the header row and the bound mapping. Any change gives a new value.
func Fingerprint(g Grid, headerIdx int, mapping ColumnMapping) uint64 {
	h := xxh3.New()
	for _, row := range g {
		for _, cell := range row {
			h.WriteString(cell)
			h.Write([]byte{0x1f})
		}
		h.Write([]byte{0x1e})
	}
	h.WriteString("header=" + strconv.Itoa(headerIdx))
	h.Write([]byte{0x1d})
	for _, key := range mapping.sortedKeys() {
		label, ok := mapping.Label(key)
		if !ok {
			continue
		}
		h.WriteString(key)
		h.Write([]byte{0x1f})
		h.WriteString(label)
		h.Write([]byte{0x1e})
	}
	return h.Sum64()
}
