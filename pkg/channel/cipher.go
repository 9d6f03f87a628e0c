package channel

import (
	"crypto/cipher"
	"encoding/binary"
	"strconv"
	"strings"
	"unicode"

	"go.dedis.ch/kyber/v3/util/random"
	"golang.org/x/xerrors"
)

var (
	ErrUnsupportedChar   = xerrors.New("unsupported character")
	ErrInvalidCiphertext = xerrors.New("invalid ciphertext")
)

// DefaultCodeMap assigns a four-digit code to every character a message may
// contain. Letters are case-folded before lookup.
var DefaultCodeMap = map[rune]int{
	'a': 1111, 'b': 5411, 'c': 6888, 'd': 6666, 'e': 2091,
	'f': 3101, 'g': 6212, 'h': 7480, 'i': 1021, 'j': 5090,
	'k': 2780, 'l': 9710, 'm': 8301, 'n': 6571, 'o': 3551,
	'p': 4201, 'q': 3441, 'r': 4910, 's': 7010, 't': 3912,
	'u': 8421, 'v': 8120, 'w': 6630, 'x': 7021, 'y': 4530,
	'z': 9780, ' ': 1119, '.': 9998, ',': 8889, '!': 7779,
	'?': 6670, '\'': 7777, '0': 1000, '1': 2000, '2': 3000,
	'3': 4000, '4': 5000, '5': 6000, '6': 7000, '7': 8000,
	'8': 9000, '9': 1500,
}

// Cipher turns messages into lists of integers and back. Each character is
// mapped to its code and XORed with the next value of a stream seeded by the
// channel key, so only holders of the key can read a message.
type Cipher struct {
	key     Key
	codes   map[rune]int
	reverse map[int]rune
}

// NewCipher creates a cipher for key using DefaultCodeMap.
func NewCipher(key Key) (*Cipher, error) {
	return NewCipherWithMap(key, DefaultCodeMap)
}

// NewCipherWithMap creates a cipher for key with a custom code map. Codes
// must be unique.
func NewCipherWithMap(key Key, codes map[rune]int) (*Cipher, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	reverse := make(map[int]rune, len(codes))
	for r, c := range codes {
		if prev, dup := reverse[c]; dup {
			return nil, xerrors.Errorf("code %d used for both %q and %q", c, prev, r)
		}
		reverse[c] = r
	}
	return &Cipher{key: key, codes: codes, reverse: reverse}, nil
}

// Encrypt returns the ciphertext of text, one integer per character.
func (c *Cipher) Encrypt(text string) ([]int, error) {
	runes := []rune(strings.ToLower(text))
	out := make([]int, len(runes))
	pad := c.pad()
	for i, r := range runes {
		code, ok := c.codes[r]
		if !ok {
			return nil, xerrors.Errorf("%q at position %d: %w", r, i, ErrUnsupportedChar)
		}
		out[i] = code ^ pad()
	}
	return out, nil
}

// Decrypt reverses Encrypt. A value that does not map back to a character
// means the ciphertext was made with another key or was altered.
func (c *Cipher) Decrypt(values []int) (string, error) {
	var b strings.Builder
	pad := c.pad()
	for i, v := range values {
		r, ok := c.reverse[v^pad()]
		if !ok {
			return "", xerrors.Errorf("value %d at position %d: %w", v, i, ErrInvalidCiphertext)
		}
		b.WriteRune(r)
	}
	return b.String(), nil
}

// pad returns a generator of values in [1000, 9999] drawn from the key's
// XOF stream.
func (c *Cipher) pad() func() int {
	stream := random.New(Suite.XOF([]byte("keychannel-message:" + string(c.key))))
	return func() int { return 1000 + int(nextUint32(stream)%9000) }
}

func nextUint32(s cipher.Stream) uint32 {
	var buf [4]byte
	s.XORKeyStream(buf[:], buf[:])
	return binary.BigEndian.Uint32(buf[:])
}

// ParseCiphertext reads a comma separated list of integers, optionally
// enclosed in brackets, as printed by FormatCiphertext.
func ParseCiphertext(input string) ([]int, error) {
	cleaned := strings.Trim(strings.TrimSpace(input), "[]")
	if strings.TrimSpace(cleaned) == "" {
		return []int{}, nil
	}
	parts := strings.Split(cleaned, ",")
	out := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimFunc(p, unicode.IsSpace))
		if err != nil {
			return nil, xerrors.Errorf("element %d %q: %w", i, p, ErrInvalidCiphertext)
		}
		out[i] = v
	}
	return out, nil
}

// FormatCiphertext prints values as "[v1, v2, ...]".
func FormatCiphertext(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
