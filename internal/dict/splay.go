// Package dict implements the ordered key→slot dictionary aos-tag keeps
// shared instances in: a splay tree under one reader/writer lock, chosen
// over a plain balanced tree for the same reason the source picked it —
// locality for skewed, repeatedly-reopened keys — per spec.md §4.2's
// explicit allowance to keep that choice.
//
// Unlike the source's splay_int_search (original_source/aos-tag/splay-trees_int-keys
// /splay-trees_int-keys.c), a plain lookup never restructures the tree —
// _spli_search_node there is a pure traversal, and only insert/delete
// splay — so Lookup only needs the read side of the lock, matching
// spec.md §4.5.1's "take dict read-lock; lookup(key); release".
package dict

import (
	"context"

	"tagengine/internal/rwkill"
)

type node struct {
	key, slot   int32
	left, right *node
}

// Dict is a splay-tree-backed ordered map from int32 key to slot index,
// guarded by a single cancelable reader/writer lock. It never holds any
// other lock while granting access, per spec.md §4.2.
type Dict struct {
	lock rwkill.Mutex
	root *node
	size int
}

// New returns an empty Dict.
func New() *Dict { return &Dict{} }

func search(n *node, key int32) *node {
	for n != nil {
		switch {
		case key < n.key:
			n = n.left
		case key > n.key:
			n = n.right
		default:
			return n
		}
	}
	return nil
}

// Lookup reports the slot registered for key, if any. It takes only the
// read side of the lock and never blocks indefinitely (background
// context): spec.md §4.5.1 does not mark this acquisition killable.
func (d *Dict) Lookup(key int32) (int32, bool) {
	_ = d.lock.RLock(context.Background())
	defer d.lock.RUnlock()
	n := search(d.root, key)
	if n == nil {
		return 0, false
	}
	return n.slot, true
}

// rotateRight and rotateLeft are the two splay-tree rebalancing steps;
// splay brings the node nearest to key to the root via repeated
// zig/zig-zig/zig-zag steps, the standard top-down splay used so the tree
// doesn't need father pointers (the source's SplayIntNode._father becomes
// unnecessary once rotations are expressed recursively).
func rotateRight(n *node) *node {
	l := n.left
	n.left = l.right
	l.right = n
	return l
}

func rotateLeft(n *node) *node {
	r := n.right
	n.right = r.left
	r.left = n
	return r
}

func splay(n *node, key int32) *node {
	if n == nil {
		return nil
	}
	if key < n.key {
		if n.left == nil {
			return n
		}
		if key < n.left.key {
			n.left.left = splay(n.left.left, key)
			n = rotateRight(n)
		} else if key > n.left.key {
			n.left.right = splay(n.left.right, key)
			if n.left.right != nil {
				n.left = rotateLeft(n.left)
			}
		}
		if n.left == nil {
			return n
		}
		return rotateRight(n)
	} else if key > n.key {
		if n.right == nil {
			return n
		}
		if key > n.right.key {
			n.right.right = splay(n.right.right, key)
			n = rotateLeft(n)
		} else if key < n.right.key {
			n.right.left = splay(n.right.left, key)
			if n.right.left != nil {
				n.right = rotateRight(n.right)
			}
		}
		if n.right == nil {
			return n
		}
		return rotateLeft(n)
	}
	return n
}

// Insert adds key→slot, splaying key to the root. It reports false (and
// leaves the dictionary unchanged) if key is already present — callers
// must Lookup first to distinguish "duplicate" from other failure modes,
// matching the source's two-step search-then-insert under one held lock.
func (d *Dict) Insert(ctx context.Context, key, slot int32) (bool, error) {
	if err := d.lock.Lock(ctx); err != nil {
		return false, err
	}
	defer d.lock.Unlock()
	if d.root == nil {
		d.root = &node{key: key, slot: slot}
		d.size++
		return true, nil
	}
	d.root = splay(d.root, key)
	switch {
	case key == d.root.key:
		return false, nil
	case key < d.root.key:
		n := &node{key: key, slot: slot, left: d.root.left, right: d.root}
		d.root.left = nil
		d.root = n
	default:
		n := &node{key: key, slot: slot, right: d.root.right, left: d.root}
		d.root.right = nil
		d.root = n
	}
	d.size++
	return true, nil
}

// Delete removes key, reporting whether it was present.
func (d *Dict) Delete(ctx context.Context, key int32) (bool, error) {
	if err := d.lock.Lock(ctx); err != nil {
		return false, err
	}
	defer d.lock.Unlock()
	if d.root == nil {
		return false, nil
	}
	d.root = splay(d.root, key)
	if d.root.key != key {
		return false, nil
	}
	if d.root.left == nil {
		d.root = d.root.right
	} else {
		right := d.root.right
		d.root = splay(d.root.left, key)
		d.root.right = right
	}
	d.size--
	return true, nil
}

// Size reports the number of entries.
func (d *Dict) Size() int {
	_ = d.lock.RLock(context.Background())
	defer d.lock.RUnlock()
	return d.size
}

// Keys returns every key currently in the dictionary, in ascending order.
// This is the Go counterpart of the source's splay_int_bfs bulk export
// (used there for module-unload bookkeeping); an in-order walk is used
// instead of a breadth-first one since order, not traversal shape, is
// what callers need.
func (d *Dict) Keys() []int32 {
	_ = d.lock.RLock(context.Background())
	defer d.lock.RUnlock()
	keys := make([]int32, 0, d.size)
	var walk func(*node)
	walk = func(n *node) {
		if n == nil {
			return
		}
		walk(n.left)
		keys = append(keys, n.key)
		walk(n.right)
	}
	walk(d.root)
	return keys
}
