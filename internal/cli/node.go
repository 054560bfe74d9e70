package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jacentio/regtree/hive"
	"github.com/jacentio/regtree/pathstore"
)

// Node is a key with its parameters and subkeys, as printed by tree and
// exchanged by export and import.
type Node struct {
	Name   string      `json:"name" yaml:"name"`
	Values []NodeValue `json:"values,omitempty" yaml:"values,omitempty"`
	Keys   []Node      `json:"keys,omitempty" yaml:"keys,omitempty"`
}

// NodeValue is one parameter of a Node.
type NodeValue struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
	Data any    `json:"data" yaml:"data"`

	display string
}

// Value converts the exported form back to a hive.Value.
func (v NodeValue) Value() (hive.Value, error) {
	kind, err := hive.ParseKind(v.Type)
	if err != nil {
		return hive.Value{}, err
	}
	return importData(kind, v.Data)
}

func joinPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + hive.Separator + name
}

func lastSegment(path string) string {
	if i := strings.LastIndex(path, hive.Separator); i >= 0 {
		return path[i+1:]
	}
	return path
}

// displayName is the full name of the key at path, starting at the store root.
func displayName(s *pathstore.Store, path string) string {
	return joinPath(s.Root().Name(), pathstore.PreparePath(path))
}

// readNode reads the key at path and, down to depth levels (negative for all), its subkeys.
func readNode(ctx context.Context, s *pathstore.Store, path, name string, depth int) (Node, error) {
	n := Node{Name: name}

	names, err := s.GetValueNames(ctx, path)
	if err != nil {
		return Node{}, err
	}
	for _, param := range names {
		v, err := s.Read(ctx, path, param)
		if err != nil {
			return Node{}, err
		}
		n.Values = append(n.Values, NodeValue{
			Name:    param,
			Type:    v.Kind().String(),
			Data:    exportData(v),
			display: v.String(),
		})
	}

	if depth == 0 {
		return n, nil
	}
	keys, err := s.GetSubKeyNames(ctx, path)
	if err != nil {
		return Node{}, err
	}
	for _, key := range keys {
		child, err := readNode(ctx, s, joinPath(path, key), key, depth-1)
		if err != nil {
			return Node{}, err
		}
		n.Keys = append(n.Keys, child)
	}
	return n, nil
}

// printTree writes n as an indented listing: keys on their own line, parameters
// as "name = value (type)" one level deeper.
func printTree(w io.Writer, n Node, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(w, "%s%s\n", indent, n.Name)
	for _, v := range n.Values {
		name := v.Name
		if name == "" {
			name = "(default)"
		}
		fmt.Fprintf(w, "%s  %s = %s (%s)\n", indent, name, v.display, v.Type)
	}
	for _, k := range n.Keys {
		printTree(w, k, depth+1)
	}
}

// writeNode stores the contents of n at path. n's own name is not used, so a
// node can be imported below any key. Keys without parameters are created empty.
func writeNode(ctx context.Context, s *pathstore.Store, path string, n Node) (written int, err error) {
	if len(n.Values) == 0 && pathstore.PreparePath(path) != "" {
		k, err := s.Root().CreateSubKey(ctx, pathstore.PreparePath(path), hive.CreateOptions{})
		if err != nil {
			return 0, fmt.Errorf("create %q: %w", path, err)
		}
		k.Close()
	}

	for _, nv := range n.Values {
		v, err := nv.Value()
		if err != nil {
			return written, fmt.Errorf("%q %q: %w", path, nv.Name, err)
		}
		if err := s.Write(ctx, path, nv.Name, v); err != nil {
			return written, err
		}
		written++
	}

	for _, k := range n.Keys {
		if k.Name == "" || strings.ContainsAny(k.Name, `\/`) {
			return written, fmt.Errorf("%w: key name %q", hive.ErrInvalidPath, k.Name)
		}
		w, err := writeNode(ctx, s, joinPath(path, k.Name), k)
		written += w
		if err != nil {
			return written, err
		}
	}
	return written, nil
}
