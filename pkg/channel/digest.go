package channel

import (
	"crypto/sha256"
	"sort"

	"github.com/cbergoon/merkletree"
	"golang.org/x/xerrors"
)

// keyContent is a Merkle leaf holding one channel key.
type keyContent struct {
	key Key
}

func (c keyContent) CalculateHash() ([]byte, error) {
	h := sha256.Sum256([]byte(c.key))
	return h[:], nil
}

func (c keyContent) Equals(other merkletree.Content) (bool, error) {
	o, ok := other.(keyContent)
	if !ok {
		return false, xerrors.New("value is not a channel key leaf")
	}
	return c.key == o.key, nil
}

// Digest returns the Merkle root over the keyring's keys in sorted order.
// Two keyrings holding the same keys have the same digest, so parties can
// compare keyrings without revealing keys. An empty keyring has a nil digest.
func (s *Store) Digest() ([]byte, error) {
	tree, err := s.tree()
	if err != nil || tree == nil {
		return nil, err
	}
	return tree.MerkleRoot(), nil
}

// Contains reports whether key is part of the keyring's Merkle tree.
func (s *Store) Contains(key Key) (bool, error) {
	tree, err := s.tree()
	if err != nil || tree == nil {
		return false, err
	}
	return tree.VerifyContent(keyContent{key: key})
}

func (s *Store) tree() (*merkletree.MerkleTree, error) {
	s.mu.RLock()
	keys := make([]string, 0, len(s.byKey))
	for k := range s.byKey {
		keys = append(keys, string(k))
	}
	s.mu.RUnlock()

	if len(keys) == 0 {
		return nil, nil
	}
	sort.Strings(keys)
	leaves := make([]merkletree.Content, len(keys))
	for i, k := range keys {
		leaves[i] = keyContent{key: Key(k)}
	}
	tree, err := merkletree.NewTree(leaves)
	if err != nil {
		return nil, xerrors.Errorf("failed to build keyring tree: %w", err)
	}
	return tree, nil
}
