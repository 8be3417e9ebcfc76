package style

import (
	"strconv"
	"strings"

	"github.com/llehouerou/termimage/internal/imgerr"
)

// ChunkSize is the maximum number of base64 bytes per escape sequence.
const ChunkSize = 4096

// ControlData is an ordered list of key=value pairs.
type ControlData struct {
	sep   byte
	pairs []string
}

// NewControlData returns an empty list joined by sep.
func NewControlData(sep byte) *ControlData {
	return &ControlData{sep: sep}
}

// Set appends key=value. Keys and values must not contain separators.
func (c *ControlData) Set(key string, value any) error {
	if key == "" || strings.ContainsAny(key, ",=;:\x1b") {
		return &imgerr.ProtocolError{Key: key, Reason: "invalid key"}
	}
	var v string
	switch val := value.(type) {
	case string:
		v = val
	case int:
		v = strconv.Itoa(val)
	case int32:
		v = strconv.FormatInt(int64(val), 10)
	case int64:
		v = strconv.FormatInt(val, 10)
	case bool:
		v = "0"
		if val {
			v = "1"
		}
	default:
		return &imgerr.ProtocolError{Key: key, Reason: "unsupported value type"}
	}
	if strings.ContainsAny(v, ",;:\x1b\a") || strings.IndexByte(v, c.sep) >= 0 {
		return &imgerr.ProtocolError{Key: key, Reason: "value contains a separator"}
	}
	c.pairs = append(c.pairs, key+"="+v)
	return nil
}

func (c *ControlData) String() string {
	return strings.Join(c.pairs, string(c.sep))
}

// Chunk splits s into pieces of at most size bytes.
func Chunk(s string, size int) []string {
	if len(s) <= size {
		return []string{s}
	}
	chunks := make([]string, 0, (len(s)+size-1)/size)
	for len(s) > size {
		chunks = append(chunks, s[:size])
		s = s[size:]
	}
	return append(chunks, s)
}
