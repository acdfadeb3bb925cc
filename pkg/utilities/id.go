package utilities

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/segmentio/ksuid"
)

var (
	nodeOnce sync.Once
	node     *snowflake.Node
)

// NewKSUID generates a new globally unique KSUID string.
func NewKSUID() string {
	return ksuid.New().String()
}

// NextID returns a snowflake id from the process-wide node. The node id comes
// from SNOWFLAKE_NODE and defaults to 1.
func NextID() int64 {
	nodeOnce.Do(func() {
		id, err := strconv.ParseInt(os.Getenv("SNOWFLAKE_NODE"), 10, 64)
		if err != nil {
			id = 1
		}
		n, err := snowflake.NewNode(id)
		if err != nil {
			// out of range node id
			n, _ = snowflake.NewNode(1)
		}
		node = n
	})
	return node.Generate().Int64()
}

// RandomSuffix returns n lowercase alphanumeric characters taken from the
// random payload of a fresh KSUID. n is capped at 16.
func RandomSuffix(n int) string {
	if n > 16 {
		n = 16
	}
	s := ksuid.New().String()
	return strings.ToLower(s[len(s)-n:])
}
