package btree

import "github.com/tegdb/tegdb/pkg/types"

// Cursor iterates the KeyMap in key order, per spec §4.2/§4.8: Seek to a
// starting key (nil means "from the very first key"), then Next until
// Valid() is false. Reading stops the moment the caller stops calling
// Next — the executor's LIMIT/early-termination contract (spec invariant 9)
// depends on that.
type Cursor struct {
	tree         *BPlusTree
	currentNode  *Node
	currentIndex int
}

// NewCursor returns an unpositioned cursor over tree. Call Seek before
// reading.
func NewCursor(tree *BPlusTree) *Cursor {
	return &Cursor{tree: tree}
}

// Close releases the lock on whichever leaf the cursor is parked on. Safe
// to call multiple times.
func (c *Cursor) Close() {
	if c.currentNode != nil {
		c.currentNode.RUnlock()
		c.currentNode = nil
	}
}

// Key returns the key at the cursor's current position. Only valid when
// Valid() is true.
func (c *Cursor) Key() types.ByteKey { return c.currentNode.Keys[c.currentIndex] }

// Value returns the value at the cursor's current position.
func (c *Cursor) Value() *types.SharedValue { return c.currentNode.Values[c.currentIndex] }

// Valid reports whether the cursor currently points at a live entry.
func (c *Cursor) Valid() bool { return c.currentNode != nil && c.currentIndex < c.currentNode.N }

// Seek positions the cursor at key, or the next key after it if key is
// absent. A nil key seeks to the first key in the tree.
func (c *Cursor) Seek(key types.ByteKey) {
	c.Close()

	leaf, idx := c.tree.FindLeafLowerBound(key)

	if leaf == nil {
		c.currentNode = nil
		c.currentIndex = 0
		return
	}

	if idx >= leaf.N {
		nextLeaf := leaf.Next

		if nextLeaf != nil {
			nextLeaf.RLock()
			leaf.RUnlock()
			leaf = nextLeaf
			idx = 0
			for leaf != nil && leaf.N == 0 {
				next := leaf.Next
				if next != nil {
					next.RLock()
				}
				leaf.RUnlock()
				leaf = next
				idx = 0
			}
		} else {
			leaf.RUnlock()
			c.currentNode = nil
			return
		}
	}

	if leaf == nil {
		c.currentNode = nil
		return
	}

	c.currentNode = leaf
	c.currentIndex = idx
}

// Next advances the cursor, returning false once it runs off the end.
func (c *Cursor) Next() bool {
	if c.currentNode == nil {
		return false
	}

	if c.currentIndex+1 < c.currentNode.N {
		c.currentIndex++
		return true
	}

	nextLeaf := c.currentNode.Next

	if nextLeaf != nil {
		nextLeaf.RLock()
	}

	c.currentNode.RUnlock()
	c.currentNode = nextLeaf
	c.currentIndex = 0

	for c.currentNode != nil && c.currentNode.N == 0 {
		next := c.currentNode.Next
		if next != nil {
			next.RLock()
		}
		c.currentNode.RUnlock()
		c.currentNode = next
		c.currentIndex = 0
	}

	return c.currentNode != nil
}
