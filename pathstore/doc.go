// Package pathstore provides path-addressed access to a hierarchical key/value store.
//
// A Store is bound to one root section for its lifetime. Every operation takes a
// relative path using either "/" or "\" as the separator, normalizes it with
// PreparePath, opens or creates the section, acts on it and closes the handle again.
// Nothing is cached between calls.
//
// # Basic Usage
//
//	s, err := pathstore.New(pathstore.WithRoot(memory.NewRoot(hive.CurrentUser)))
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//
//	if err := s.Write(ctx, "Software/Acme", "Build", 42); err != nil {
//		return err
//	}
//	v, err := s.Read(ctx, "Software/Acme", "Build")
//
// Without WithRoot the store binds to the current user's root: the Windows registry
// on Windows, a SQLite file under the user config directory elsewhere.
//
// # Errors
//
// Errors carry the operation and path and wrap the hive sentinels, so callers use
// errors.Is:
//
//	_, err := s.Read(ctx, "Software/Acme", "Missing")
//	if errors.Is(err, hive.ErrValueNotFound) { ... }
//
// DeleteValue and DeleteKey treat a missing target as a no-op unless FailIfMissing
// is set.
package pathstore
