// Package memory provides an in-process hive.Key backend.
//
// The tree lives in memory and is lost when the Hive is garbage collected, so every
// section behaves as volatile. The backend is safe for concurrent use and follows the
// same rules as the durable backends, which makes it the reference for tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jacentio/regtree/hive"
)

// Hive is an in-memory store holding any number of named roots.
type Hive struct {
	mu    sync.RWMutex
	roots map[string]*node
}

type node struct {
	name     string
	parent   *node
	children map[string]*node
	values   map[string]*entry
	volatile bool
	deleted  bool
}

type entry struct {
	name  string
	value hive.Value
}

// New creates an empty Hive.
func New() *Hive {
	return &Hive{roots: make(map[string]*node)}
}

// NewRoot is shorthand for New().Root(name).
func NewRoot(name string) hive.Key {
	return New().Root(name)
}

// Root returns a writable handle to the named root, creating it on first use.
func (h *Hive) Root(name string) hive.Key {
	h.mu.Lock()
	defer h.mu.Unlock()

	folded := hive.Fold(name)
	n, ok := h.roots[folded]
	if !ok {
		n = newNode(name, nil, false)
		h.roots[folded] = n
	}
	return &key{hive: h, node: n, writable: true}
}

func newNode(name string, parent *node, volatile bool) *node {
	return &node{
		name:     name,
		parent:   parent,
		children: make(map[string]*node),
		values:   make(map[string]*entry),
		volatile: volatile,
	}
}

func (n *node) path() string {
	if n.parent == nil {
		return n.name
	}
	return n.parent.path() + hive.Separator + n.name
}

func (n *node) walk(segments []string) *node {
	cur := n
	for _, s := range segments {
		next, ok := cur.children[hive.Fold(s)]
		if !ok {
			return nil
		}
		cur = next
	}
	return cur
}

func (n *node) markDeleted() {
	n.deleted = true
	for _, c := range n.children {
		c.markDeleted()
	}
}

// key is a handle to one node. All fields besides closed are immutable.
type key struct {
	hive     *Hive
	node     *node
	writable bool
	closed   bool
}

// check must be called with hive.mu held.
func (k *key) check() error {
	if k.closed {
		return hive.ErrKeyClosed
	}
	if k.node.deleted {
		return hive.ErrKeyDeleted
	}
	return nil
}

func (k *key) Name() string {
	return k.node.path()
}

func (k *key) CreateSubKey(ctx context.Context, path string, opts hive.CreateOptions) (hive.Key, error) {
	if err := opts.Option.Validate(); err != nil {
		return nil, err
	}
	if opts.Option == hive.CreateBackupRestore {
		return nil, fmt.Errorf("%w: %s", hive.ErrUnsupported, opts.Option)
	}
	segments, err := hive.SplitPath(path)
	if err != nil {
		return nil, err
	}

	k.hive.mu.Lock()
	defer k.hive.mu.Unlock()

	if err := k.check(); err != nil {
		return nil, err
	}

	cur := k.node
	for _, s := range segments {
		folded := hive.Fold(s)
		if next, ok := cur.children[folded]; ok {
			cur = next
			continue
		}
		if !k.writable {
			return nil, hive.ErrReadOnly
		}
		volatile := opts.Option == hive.CreateVolatile
		if cur.volatile && !volatile {
			return nil, hive.ErrChildMustBeVolatile
		}
		next := newNode(s, cur, volatile)
		cur.children[folded] = next
		cur = next
	}

	return &key{hive: k.hive, node: cur, writable: opts.Writable}, nil
}

func (k *key) OpenSubKey(ctx context.Context, path string, writable bool) (hive.Key, bool, error) {
	segments, err := hive.SplitPath(path)
	if err != nil {
		return nil, false, err
	}

	k.hive.mu.RLock()
	defer k.hive.mu.RUnlock()

	if err := k.check(); err != nil {
		return nil, false, err
	}
	n := k.node.walk(segments)
	if n == nil {
		return nil, false, nil
	}
	return &key{hive: k.hive, node: n, writable: writable}, true, nil
}

func (k *key) GetValue(ctx context.Context, name string) (hive.Value, bool, error) {
	if err := hive.ValidateValueName(name); err != nil {
		return hive.Value{}, false, err
	}

	k.hive.mu.RLock()
	defer k.hive.mu.RUnlock()

	if err := k.check(); err != nil {
		return hive.Value{}, false, err
	}
	e, ok := k.node.values[hive.Fold(name)]
	if !ok {
		return hive.Value{}, false, nil
	}
	return e.value, true, nil
}

func (k *key) SetValue(ctx context.Context, name string, value hive.Value) error {
	if err := hive.ValidateValueName(name); err != nil {
		return err
	}
	if !value.Kind().Valid() {
		return fmt.Errorf("%w: %s", hive.ErrUnsupportedType, value.Kind())
	}

	k.hive.mu.Lock()
	defer k.hive.mu.Unlock()

	if err := k.check(); err != nil {
		return err
	}
	if !k.writable {
		return hive.ErrReadOnly
	}

	folded := hive.Fold(name)
	if e, ok := k.node.values[folded]; ok {
		e.value = value
		return nil
	}
	k.node.values[folded] = &entry{name: name, value: value}
	return nil
}

func (k *key) DeleteValue(ctx context.Context, name string) error {
	k.hive.mu.Lock()
	defer k.hive.mu.Unlock()

	if err := k.check(); err != nil {
		return err
	}
	if !k.writable {
		return hive.ErrReadOnly
	}

	folded := hive.Fold(name)
	if _, ok := k.node.values[folded]; !ok {
		return hive.ErrValueNotFound
	}
	delete(k.node.values, folded)
	return nil
}

func (k *key) DeleteSubKey(ctx context.Context, path string) error {
	return k.deleteSubKey(path, false)
}

func (k *key) DeleteSubKeyTree(ctx context.Context, path string) error {
	return k.deleteSubKey(path, true)
}

func (k *key) deleteSubKey(path string, recursive bool) error {
	segments, err := hive.SplitPath(path)
	if err != nil {
		return err
	}
	if len(segments) == 0 {
		return fmt.Errorf("%w: cannot delete the key itself", hive.ErrInvalidPath)
	}

	k.hive.mu.Lock()
	defer k.hive.mu.Unlock()

	if err := k.check(); err != nil {
		return err
	}
	if !k.writable {
		return hive.ErrReadOnly
	}

	target := k.node.walk(segments)
	if target == nil {
		return hive.ErrKeyNotFound
	}
	if !recursive && len(target.children) > 0 {
		return hive.ErrHasSubKeys
	}

	delete(target.parent.children, hive.Fold(target.name))
	target.markDeleted()
	return nil
}

func (k *key) ValueCount(ctx context.Context) (int, error) {
	k.hive.mu.RLock()
	defer k.hive.mu.RUnlock()

	if err := k.check(); err != nil {
		return 0, err
	}
	return len(k.node.values), nil
}

func (k *key) SubKeyCount(ctx context.Context) (int, error) {
	k.hive.mu.RLock()
	defer k.hive.mu.RUnlock()

	if err := k.check(); err != nil {
		return 0, err
	}
	return len(k.node.children), nil
}

func (k *key) ValueNames(ctx context.Context) ([]string, error) {
	k.hive.mu.RLock()
	defer k.hive.mu.RUnlock()

	if err := k.check(); err != nil {
		return nil, err
	}
	folded := make([]string, 0, len(k.node.values))
	for f := range k.node.values {
		folded = append(folded, f)
	}
	sort.Strings(folded)

	names := make([]string, len(folded))
	for i, f := range folded {
		names[i] = k.node.values[f].name
	}
	return names, nil
}

func (k *key) SubKeyNames(ctx context.Context) ([]string, error) {
	k.hive.mu.RLock()
	defer k.hive.mu.RUnlock()

	if err := k.check(); err != nil {
		return nil, err
	}
	folded := make([]string, 0, len(k.node.children))
	for f := range k.node.children {
		folded = append(folded, f)
	}
	sort.Strings(folded)

	names := make([]string, len(folded))
	for i, f := range folded {
		names[i] = k.node.children[f].name
	}
	return names, nil
}

func (k *key) Close() error {
	k.hive.mu.Lock()
	defer k.hive.mu.Unlock()

	k.closed = true
	return nil
}
