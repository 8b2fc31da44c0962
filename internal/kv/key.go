package kv

import (
	"bytes"
	"strings"
)

const separator = 0x00

// Key is a tuple of string segments. Segments are joined with a zero byte,
// so a prefix scan over Key{"articles_by_tag", "go"} never matches the
// segment "golang".
type Key []string

// K builds a Key from segments
func K(segments ...string) Key {
	return Key(segments)
}

// Encode returns the on-disk representation of the key
func (k Key) Encode() []byte {
	var buf bytes.Buffer
	for i, s := range k {
		if i > 0 {
			buf.WriteByte(separator)
		}
		buf.WriteString(s)
	}
	return buf.Bytes()
}

// prefix returns the encoded key followed by a separator, matching every
// key that extends k by at least one segment.
func (k Key) prefix() []byte {
	b := k.Encode()
	if len(k) == 0 {
		return b
	}
	return append(b, separator)
}

func (k Key) valid() bool {
	if len(k) == 0 {
		return false
	}
	for _, s := range k {
		if strings.IndexByte(s, separator) >= 0 {
			return false
		}
	}
	return true
}

// Last returns the final segment, or "" for an empty key
func (k Key) Last() string {
	if len(k) == 0 {
		return ""
	}
	return k[len(k)-1]
}

func (k Key) String() string {
	return strings.Join(k, "/")
}

// DecodeKey splits an encoded key back into its segments
func DecodeKey(b []byte) Key {
	parts := bytes.Split(b, []byte{separator})
	key := make(Key, len(parts))
	for i, p := range parts {
		key[i] = string(p)
	}
	return key
}
