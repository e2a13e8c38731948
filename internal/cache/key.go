package cache

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// JobKey derives the render job id from everything that determines the
// output. Identical submissions map to the same id.
func JobKey(runtimeChecksum, themeChecksum, input string) string {
	d := xxhash.New()
	for _, part := range []string{runtimeChecksum, themeChecksum, input} {
		_, _ = d.WriteString(part)
		_, _ = d.Write([]byte{0})
	}
	return fmt.Sprintf("rj-%016x", d.Sum64())
}
