package nowindex

import (
	"bytes"
	"sort"
	"sync"

	"github.com/toschoo/nowdb-go/nowerr"
)

const defaultOrder = 128

// node is one B+ tree node. Leaves carry LeafValue entries and are
// chained via next for fast ordered range scans, mirroring the
// cache-backed Pager's page-chain traversal in the storage-engine
// B-tree reference this tree is grounded on.
type node struct {
	leaf     bool
	keys     [][]byte
	values   []LeafValue // leaf only, parallel to keys
	children []*node     // internal only, len(children) == len(keys)+1
	next     *node       // leaf only
}

// Tree is an in-memory B+ tree over a KeySpec-shaped key.
type Tree struct {
	mu    sync.RWMutex
	root  *node
	order int
	Spec  KeySpec
	Name  string
}

// Create builds a fresh, empty index with the given key specification
// and node fanout ("sizing" in spec §4.I terms).
func Create(name string, spec KeySpec, order int) *Tree {
	if order <= 2 {
		order = defaultOrder
	}
	return &Tree{
		root:  &node{leaf: true},
		order: order,
		Spec:  spec,
		Name:  name,
	}
}

// DoesExist reports whether key has any entry, without constructing
// an iterator over its value.
func (t *Tree) DoesExist(key []byte) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	leaf, idx := t.findLeaf(key)
	return idx < len(leaf.keys) && bytes.Equal(leaf.keys[idx], key)
}

// Insert records that key maps to a single page id. Used for unique
// indexes (e.g. a primary key).
func (t *Tree) Insert(key []byte, pageID uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	leaf, idx := t.findLeaf(key)
	if idx < len(leaf.keys) && bytes.Equal(leaf.keys[idx], key) {
		return nowerr.Sentinel(nowerr.DupKey)
	}
	t.insertAt(leaf, idx, key, LeafValue{Kind: LeafPageID, PageID: pageID})
	return nil
}

// InsertBit marks slot as present for key, in the page identified by
// pageID, creating the leaf entry if key hasn't been seen before. Used
// for non-unique secondary indexes.
func (t *Tree) InsertBit(key []byte, pageID uint64, slot int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	leaf, idx := t.findLeaf(key)
	if idx < len(leaf.keys) && bytes.Equal(leaf.keys[idx], key) {
		leaf.values[idx].SetBit(slot)
		return
	}
	v := LeafValue{Kind: LeafBitmap, PageID: pageID}
	v.SetBit(slot)
	t.insertAt(leaf, idx, key, v)
}

// findLeaf descends to the leaf that would contain key, returning the
// leaf and the insertion index within it (key's position if present,
// or where it would be inserted).
func (t *Tree) findLeaf(key []byte) (*node, int) {
	n := t.root
	for !n.leaf {
		i := sort.Search(len(n.keys), func(i int) bool { return bytes.Compare(key, n.keys[i]) < 0 })
		n = n.children[i]
	}
	idx := sort.Search(len(n.keys), func(i int) bool { return bytes.Compare(n.keys[i], key) >= 0 })
	return n, idx
}

func (t *Tree) insertAt(leaf *node, idx int, key []byte, v LeafValue) {
	leaf.keys = append(leaf.keys, nil)
	copy(leaf.keys[idx+1:], leaf.keys[idx:])
	leaf.keys[idx] = key

	leaf.values = append(leaf.values, LeafValue{})
	copy(leaf.values[idx+1:], leaf.values[idx:])
	leaf.values[idx] = v

	if len(leaf.keys) > t.order {
		t.splitLeaf(leaf)
	}
}

// splitLeaf halves an overfull leaf and propagates the new leaf's
// first key up to the parent chain, growing the tree's height when
// the root itself splits.
func (t *Tree) splitLeaf(leaf *node) {
	mid := len(leaf.keys) / 2
	right := &node{
		leaf:   true,
		keys:   append([][]byte(nil), leaf.keys[mid:]...),
		values: append([]LeafValue(nil), leaf.values[mid:]...),
		next:   leaf.next,
	}
	leaf.keys = leaf.keys[:mid]
	leaf.values = leaf.values[:mid]
	leaf.next = right

	t.insertIntoParent(leaf, right.keys[0], right)
}

// insertIntoParent threads a newly split right sibling into left's
// parent, rebuilding the path from the root if left had none (i.e.
// left was the root).
func (t *Tree) insertIntoParent(left *node, sepKey []byte, right *node) {
	parent := t.findParent(t.root, left)
	if parent == nil {
		t.root = &node{
			leaf:     false,
			keys:     [][]byte{sepKey},
			children: []*node{left, right},
		}
		return
	}

	i := 0
	for ; i < len(parent.children); i++ {
		if parent.children[i] == left {
			break
		}
	}
	parent.keys = append(parent.keys, nil)
	copy(parent.keys[i+1:], parent.keys[i:])
	parent.keys[i] = sepKey

	parent.children = append(parent.children, nil)
	copy(parent.children[i+2:], parent.children[i+1:])
	parent.children[i+1] = right

	if len(parent.keys) > t.order {
		t.splitInternal(parent)
	}
}

func (t *Tree) splitInternal(n *node) {
	mid := len(n.keys) / 2
	sepKey := n.keys[mid]

	right := &node{
		leaf:     false,
		keys:     append([][]byte(nil), n.keys[mid+1:]...),
		children: append([]*node(nil), n.children[mid+1:]...),
	}
	n.keys = n.keys[:mid]
	n.children = n.children[:mid+1]

	t.insertIntoParent(n, sepKey, right)
}

// findParent locates target's parent by a depth-first search from n
// over every inner child, comparing node pointers rather than keys;
// it returns nil when target is not below n.
func (t *Tree) findParent(n *node, target *node) *node {
	if n.leaf {
		return nil
	}
	for _, c := range n.children {
		if c == target {
			return n
		}
	}
	for _, c := range n.children {
		if !c.leaf {
			if p := t.findParent(c, target); p != nil {
				return p
			}
		}
	}
	return nil
}
