// Package hive defines the contract between regtree and a hierarchical key/value store.
//
// A store is a tree of sections ("keys"). Each section has zero or more child sections
// and zero or more named parameters ("values") holding a typed payload. The operating
// system registry is the canonical example; the sub-packages provide interchangeable
// backends:
//
//   - [github.com/jacentio/regtree/hive/memory]: in-process tree
//   - [github.com/jacentio/regtree/hive/sqlite]: single-file SQLite hive
//   - [github.com/jacentio/regtree/hive/dynamo]: DynamoDB tables
//   - [github.com/jacentio/regtree/hive/winreg]: the Windows registry
//
// # Keys
//
// All backends implement [Key]. Opening a section reports whether it exists instead of
// returning a nil handle:
//
//	sub, found, err := root.OpenSubKey(ctx, `Software\Acme`, false)
//	if err != nil {
//	    return err
//	}
//	if !found {
//	    return hive.ErrKeyNotFound
//	}
//	defer sub.Close()
//
// # Names
//
// Section and parameter names are case-insensitive and case-preserving. Paths use
// [Separator] between segments; empty segments are ignored by [SplitPath].
//
// # Errors
//
// The package defines the error taxonomy shared by every backend:
//
//   - [ErrInvalidPath], [ErrInvalidName], [ErrInvalidOption], [ErrUnsupportedType] - bad arguments
//   - [ErrReadOnly], [ErrAccessDenied] - permission failures
//   - [ErrKeyClosed], [ErrKeyDeleted] - handle lifecycle failures
//   - [ErrKeyNotFound], [ErrValueNotFound] - missing targets
//   - [ErrHasSubKeys], [ErrChildMustBeVolatile] - invalid operations
//   - [ErrUnsupported] - the backend cannot honour a request
package hive
