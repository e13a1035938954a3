package btree

import (
	"sort"
	"sync"

	"github.com/tegdb/tegdb/pkg/types"
)

// BPlusTree is the KeyMap: an ordered map from types.ByteKey to
// *types.SharedValue. Every key is unique (there is no secondary-index
// concept left once values live directly in the leaf).
type BPlusTree struct {
	T    int
	Root *Node
	mu   sync.RWMutex // protects the Root pointer across structural splits
}

// NewTree creates an empty KeyMap with minimum degree t.
func NewTree(t int) *BPlusTree {
	return &BPlusTree{
		T:    t,
		Root: NewNode(t, true),
	}
}

// Replace forcibly sets key's value regardless of whether it existed.
func (b *BPlusTree) Replace(key types.ByteKey, value *types.SharedValue) error {
	return b.Upsert(key, func(*types.SharedValue, bool) (*types.SharedValue, error) {
		return value, nil
	})
}

// Upsert runs fn against the prior value (nil, false if absent) and stores
// whatever it returns. fn runs while the target leaf is locked, so it can
// make an atomic read-modify-write decision (e.g. reject on PK conflict).
func (b *BPlusTree) Upsert(key types.ByteKey, fn func(old *types.SharedValue, exists bool) (*types.SharedValue, error)) error {
	b.mu.Lock()
	root := b.Root
	root.Lock()

	if root.IsFull() {
		newRoot := NewNode(b.T, false)
		newRoot.Children = append(newRoot.Children, root)
		newRoot.SplitChild(0)
		b.Root = newRoot
		b.mu.Unlock()

		newRoot.Lock()
		root.Unlock()

		return b.upsertTopDown(newRoot, key, fn)
	}

	b.mu.Unlock()
	return b.upsertTopDown(root, key, fn)
}

// upsertTopDown descends the tree splitting full children preemptively so
// the eventual leaf insert never needs to split. curr arrives locked and is
// always unlocked before returning (latch crabbing: a child is locked before
// its parent is released).
func (b *BPlusTree) upsertTopDown(curr *Node, key types.ByteKey, fn func(old *types.SharedValue, exists bool) (*types.SharedValue, error)) error {
	defer func() {
		if curr != nil {
			curr.Unlock()
		}
	}()

	for !curr.Leaf {
		i := 0
		for i < curr.N && key.Compare(curr.Keys[i]) >= 0 {
			i++
		}

		child := curr.Children[i]
		child.Lock()

		if child.IsFull() {
			curr.SplitChild(i)

			if key.Compare(curr.Keys[i]) >= 0 {
				child.Unlock()
				child = curr.Children[i+1]
				child.Lock()
			}
		}

		curr.Unlock()
		curr = child
	}

	return curr.UpsertNonFull(key, fn)
}

// Search finds the leaf holding key, RLock-coupling down the tree.
func (b *BPlusTree) Search(key types.ByteKey) (*Node, bool) {
	b.mu.RLock()
	curr := b.Root
	curr.RLock()
	b.mu.RUnlock()

	for !curr.Leaf {
		i := 0
		for i < curr.N && key.Compare(curr.Keys[i]) >= 0 {
			i++
		}
		child := curr.Children[i]
		child.RLock()

		curr.RUnlock()
		curr = child
	}

	defer curr.RUnlock()

	for j := 0; j < curr.N; j++ {
		if key.Compare(curr.Keys[j]) == 0 {
			return curr, true
		}
	}
	return nil, false
}

// Get is the point-lookup half of spec §4.2/§4.3.
func (b *BPlusTree) Get(key types.ByteKey) (*types.SharedValue, bool) {
	if b == nil {
		return nil, false
	}
	b.mu.RLock()
	curr := b.Root
	if curr == nil {
		b.mu.RUnlock()
		return nil, false
	}
	curr.RLock()
	b.mu.RUnlock()

	for !curr.Leaf {
		i := 0
		for i < curr.N && key.Compare(curr.Keys[i]) >= 0 {
			i++
		}
		child := curr.Children[i]
		child.RLock()

		curr.RUnlock()
		curr = child
	}

	defer curr.RUnlock()

	for j := 0; j < curr.N; j++ {
		if key.Compare(curr.Keys[j]) == 0 {
			return curr.Values[j], true
		}
	}
	return nil, false
}

// Remove deletes key, rebalancing as needed. Reports whether it was present.
func (b *BPlusTree) Remove(key types.ByteKey) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := b.Root.Remove(key)
	if !b.Root.Leaf && b.Root.N == 0 && len(b.Root.Children) == 1 {
		b.Root = b.Root.Children[0]
	}
	return removed
}

// FindLeafLowerBound returns the leaf (RLock held — caller must RUnlock)
// and index of the first key >= key. A nil key means "start of range": the
// leftmost leaf and index 0 are returned.
func (b *BPlusTree) FindLeafLowerBound(key types.ByteKey) (*Node, int) {
	b.mu.RLock()
	curr := b.Root
	curr.RLock()
	b.mu.RUnlock()

	for !curr.Leaf {
		var i int
		if key == nil {
			i = 0
		} else {
			i = sort.Search(curr.N, func(i int) bool {
				return curr.Keys[i].Compare(key) >= 0
			})
		}

		child := curr.Children[i]
		child.RLock()
		curr.RUnlock()
		curr = child
	}

	var idx int
	if key == nil {
		idx = 0
	} else {
		idx = sort.Search(curr.N, func(i int) bool {
			return curr.Keys[i].Compare(key) >= 0
		})
	}

	return curr, idx
}
