package avatar

import (
	"hash/fnv"
	"net/url"
	"strconv"
)

// placeholderPalette holds the background colors the fallback image service
// can render. The entry is chosen by hashing the character name, so the same
// name always yields the same color.
var placeholderPalette = []string{
	"b6e3f4", "c0aede", "d1d4f9", "ffd5dc", "ffdfbf", "a8e6cf", "f4b6c2",
}

// PlaceholderURL builds the deterministic fallback avatar URL used when
// generation or upload fails. Two calls with the same name and size return
// the same URL.
func PlaceholderURL(base, name string, size int) string {
	if size <= 0 {
		size = 128
	}

	h := fnv.New32a()
	h.Write([]byte(name))
	color := placeholderPalette[h.Sum32()%uint32(len(placeholderPalette))]

	q := url.Values{
		"seed":            {name},
		"size":            {strconv.Itoa(size)},
		"backgroundColor": {color},
	}
	return base + "?" + q.Encode()
}
