package channel

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestCipher(t *testing.T) {
	key := Key("Zx3_q-9LmN0pQrStUvWxYz")
	c, err := NewCipher(key)
	if err != nil {
		t.Fatalf("NewCipher() error = %v", err)
	}

	tests := []struct {
		name string
		text string
		want string
	}{
		{"sentence", "meet at the north gate, 9 o'clock!", "meet at the north gate, 9 o'clock!"},
		{"case folded", "Hello World?", "hello world?"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ct, err := c.Encrypt(tt.text)
			if err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}
			if len(ct) != len([]rune(tt.text)) {
				t.Errorf("len(ciphertext) = %d, want %d", len(ct), len([]rune(tt.text)))
			}
			got, err := c.Decrypt(ct)
			if err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Decrypt() = %q, want %q", got, tt.want)
			}
		})
	}

	t.Run("deterministic per key", func(t *testing.T) {
		a, _ := c.Encrypt("aaaa")
		b, _ := c.Encrypt("aaaa")
		if FormatCiphertext(a) != FormatCiphertext(b) {
			t.Errorf("same key and text gave %v and %v", a, b)
		}
		// The pad changes per position, so repeated letters do not repeat.
		if a[0] == a[1] && a[1] == a[2] && a[2] == a[3] {
			t.Errorf("repeated plaintext leaks through: %v", a)
		}
	})

	t.Run("other key", func(t *testing.T) {
		ct, _ := c.Encrypt("the quick brown fox jumps over the lazy dog")
		other, err := NewCipher("another-channel-key-0001")
		if err != nil {
			t.Fatal(err)
		}
		got, err := other.Decrypt(ct)
		if err == nil && got == "the quick brown fox jumps over the lazy dog" {
			t.Errorf("another key decrypted the message")
		}
	})

	t.Run("unsupported character", func(t *testing.T) {
		if _, err := c.Encrypt("café"); !errors.Is(err, ErrUnsupportedChar) {
			t.Errorf("Encrypt() error = %v, want ErrUnsupportedChar", err)
		}
	})

	t.Run("invalid key", func(t *testing.T) {
		if _, err := NewCipher(""); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("NewCipher(\"\") error = %v, want ErrInvalidKey", err)
		}
	})

	t.Run("duplicate codes", func(t *testing.T) {
		if _, err := NewCipherWithMap(key, map[rune]int{'a': 1, 'b': 1}); err == nil {
			t.Errorf("NewCipherWithMap() accepted duplicate codes")
		}
	})
}

func TestParseCiphertext(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"[1234, 5678, 42]", "[1234, 5678, 42]", false},
		{"1234,5678", "[1234, 5678]", false},
		{"  [ 7 ]  ", "[7]", false},
		{"[]", "[]", false},
		{"", "[]", false},
		{"[12, abc]", "", true},
		{"1,,2", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCiphertext(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCiphertext(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidCiphertext) {
					t.Errorf("error = %v, want ErrInvalidCiphertext", err)
				}
				return
			}
			if FormatCiphertext(got) != tt.want {
				t.Errorf("ParseCiphertext(%q) = %v, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestMessages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "channels.json")
	s, err := OpenStore(path)
	if err != nil {
		t.Fatal(err)
	}
	ch, err := s.Create("ops")
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < MaxMessages+2; i++ {
		if _, err := s.AddMessage(ch.Key, []int{i}); err != nil {
			t.Fatalf("AddMessage() error = %v", err)
		}
	}
	if _, err := s.AddMessage("unknown-key-0000", []int{1}); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("AddMessage() on unknown key error = %v", err)
	}

	reopened, err := OpenStore(path)
	if err != nil {
		t.Fatal(err)
	}
	msgs, err := reopened.Messages(ch.Key)
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if len(msgs) != MaxMessages {
		t.Fatalf("len(Messages()) = %d, want %d", len(msgs), MaxMessages)
	}
	if msgs[0].Ciphertext[0] != MaxMessages+1 || msgs[len(msgs)-1].Ciphertext[0] != 2 {
		t.Errorf("history not newest first: first=%v last=%v", msgs[0].Ciphertext, msgs[len(msgs)-1].Ciphertext)
	}
}
