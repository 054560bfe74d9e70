//go:build windows

package winreg

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"

	"github.com/jacentio/regtree/hive"
)

const (
	regOptionNonVolatile   = 0x0
	regOptionVolatile      = 0x1
	regOptionBackupRestore = 0x4

	errorKeyDeleted          syscall.Errno = 1018
	errorChildMustBeVolatile syscall.Errno = 1021
)

var (
	modadvapi32         = windows.NewLazySystemDLL("advapi32.dll")
	procRegCreateKeyExW = modadvapi32.NewProc("RegCreateKeyExW")
	procRegDeleteTreeW  = modadvapi32.NewProc("RegDeleteTreeW")
)

var roots = []struct {
	name string
	key  registry.Key
}{
	{hive.CurrentUser, registry.CURRENT_USER},
	{hive.LocalMachine, registry.LOCAL_MACHINE},
	{hive.ClassesRoot, registry.CLASSES_ROOT},
	{hive.Users, registry.USERS},
}

// Root returns a writable handle to a predefined registry root.
func Root(name string) (hive.Key, error) {
	for _, r := range roots {
		if hive.Fold(r.name) == hive.Fold(name) {
			return &key{k: r.key, name: r.name, writable: true, predefined: true}, nil
		}
	}
	return nil, fmt.Errorf("%w: unknown root %q", hive.ErrInvalidPath, name)
}

// createKey calls RegCreateKeyExW directly; registry.CreateKey always passes REG_OPTION_NON_VOLATILE.
func createKey(parent registry.Key, path string, options uint32, access uint32) (registry.Key, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, err
	}
	var h windows.Handle
	var disposition uint32
	r, _, _ := procRegCreateKeyExW.Call(
		uintptr(parent),
		uintptr(unsafe.Pointer(p)),
		0,
		0,
		uintptr(options),
		uintptr(access),
		0,
		uintptr(unsafe.Pointer(&h)),
		uintptr(unsafe.Pointer(&disposition)),
	)
	if r != 0 {
		return 0, syscall.Errno(r)
	}
	return registry.Key(h), nil
}

func deleteTree(parent registry.Key, path string) error {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return err
	}
	r, _, _ := procRegDeleteTreeW.Call(uintptr(parent), uintptr(unsafe.Pointer(p)))
	if r != 0 {
		return syscall.Errno(r)
	}
	return nil
}

func access(writable bool) uint32 {
	if writable {
		return registry.ALL_ACCESS
	}
	return registry.READ
}

func createOption(o hive.CreateOption) uint32 {
	switch o {
	case hive.CreateVolatile:
		return regOptionVolatile
	case hive.CreateBackupRestore:
		return regOptionBackupRestore
	default:
		return regOptionNonVolatile
	}
}

// mapErr translates registry errors. notFound is returned for ERROR_FILE_NOT_FOUND.
func mapErr(err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, registry.ErrNotExist):
		return notFound
	case errors.Is(err, errorKeyDeleted):
		return hive.ErrKeyDeleted
	case errors.Is(err, errorChildMustBeVolatile):
		return hive.ErrChildMustBeVolatile
	case errors.Is(err, syscall.ERROR_ACCESS_DENIED):
		return fmt.Errorf("%w: %v", hive.ErrAccessDenied, err)
	default:
		return fmt.Errorf("winreg: %w", err)
	}
}

type key struct {
	k          registry.Key
	name       string
	writable   bool
	predefined bool
	closed     atomic.Bool
}

func (k *key) check() error {
	if k.closed.Load() {
		return hive.ErrKeyClosed
	}
	return nil
}

func (k *key) child(path string, sub registry.Key, writable bool) *key {
	name := k.name
	if path != "" {
		name += hive.Separator + path
	}
	return &key{k: sub, name: name, writable: writable}
}

func (k *key) Name() string {
	return k.name
}

func (k *key) CreateSubKey(ctx context.Context, path string, opts hive.CreateOptions) (hive.Key, error) {
	if err := opts.Option.Validate(); err != nil {
		return nil, err
	}
	segments, err := hive.SplitPath(path)
	if err != nil {
		return nil, err
	}
	if err := k.check(); err != nil {
		return nil, err
	}
	p := hive.JoinPath(segments...)

	if !k.writable || p == "" {
		sub, err := registry.OpenKey(k.k, p, access(opts.Writable))
		if errors.Is(err, registry.ErrNotExist) {
			return nil, hive.ErrReadOnly
		}
		if err != nil {
			return nil, mapErr(err, hive.ErrKeyNotFound)
		}
		return k.child(p, sub, opts.Writable), nil
	}

	sub, err := createKey(k.k, p, createOption(opts.Option), access(opts.Writable))
	if err != nil {
		return nil, mapErr(err, hive.ErrKeyNotFound)
	}
	return k.child(p, sub, opts.Writable), nil
}

func (k *key) OpenSubKey(ctx context.Context, path string, writable bool) (hive.Key, bool, error) {
	segments, err := hive.SplitPath(path)
	if err != nil {
		return nil, false, err
	}
	if err := k.check(); err != nil {
		return nil, false, err
	}
	p := hive.JoinPath(segments...)

	sub, err := registry.OpenKey(k.k, p, access(writable))
	if errors.Is(err, registry.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, mapErr(err, hive.ErrKeyNotFound)
	}
	return k.child(p, sub, writable), true, nil
}

func (k *key) GetValue(ctx context.Context, name string) (hive.Value, bool, error) {
	if err := hive.ValidateValueName(name); err != nil {
		return hive.Value{}, false, err
	}
	if err := k.check(); err != nil {
		return hive.Value{}, false, err
	}

	size, typ, err := k.k.GetValue(name, nil)
	if errors.Is(err, registry.ErrNotExist) {
		return hive.Value{}, false, nil
	}
	if err != nil {
		return hive.Value{}, false, mapErr(err, hive.ErrValueNotFound)
	}

	var v hive.Value
	switch typ {
	case registry.SZ, registry.EXPAND_SZ:
		var s string
		s, _, err = k.k.GetStringValue(name)
		v = hive.NewString(s)
		if typ == registry.EXPAND_SZ {
			v = hive.NewExpandString(s)
		}
	case registry.DWORD:
		var n uint64
		n, _, err = k.k.GetIntegerValue(name)
		v = hive.NewDWord(uint32(n))
	case registry.QWORD:
		var n uint64
		n, _, err = k.k.GetIntegerValue(name)
		v = hive.NewQWord(n)
	case registry.MULTI_SZ:
		var list []string
		list, _, err = k.k.GetStringsValue(name)
		v = hive.NewMultiString(list)
	case registry.BINARY:
		var b []byte
		b, _, err = k.k.GetBinaryValue(name)
		v = hive.NewBinary(b)
	case registry.NONE:
		buf := make([]byte, size)
		_, _, err = k.k.GetValue(name, buf)
		v = hive.NewNone(buf)
	default:
		return hive.Value{}, false, fmt.Errorf("%w: registry type %d", hive.ErrUnsupportedType, typ)
	}
	if err != nil {
		return hive.Value{}, false, mapErr(err, hive.ErrValueNotFound)
	}
	return v, true, nil
}

func (k *key) SetValue(ctx context.Context, name string, value hive.Value) error {
	if err := hive.ValidateValueName(name); err != nil {
		return err
	}
	if err := k.check(); err != nil {
		return err
	}
	if !k.writable {
		return hive.ErrReadOnly
	}

	var err error
	switch value.Kind() {
	case hive.KindString:
		s, _ := value.Text()
		err = k.k.SetStringValue(name, s)
	case hive.KindExpandString:
		s, _ := value.Text()
		err = k.k.SetExpandStringValue(name, s)
	case hive.KindDWord:
		n, _ := value.Uint()
		err = k.k.SetDWordValue(name, uint32(n))
	case hive.KindQWord:
		n, _ := value.Uint()
		err = k.k.SetQWordValue(name, n)
	case hive.KindMultiString:
		list, _ := value.Strings()
		err = k.k.SetStringsValue(name, list)
	case hive.KindBinary:
		b, _ := value.Bytes()
		err = k.k.SetBinaryValue(name, b)
	default:
		return fmt.Errorf("%w: writing %s values", hive.ErrUnsupported, value.Kind())
	}
	return mapErr(err, hive.ErrKeyNotFound)
}

func (k *key) DeleteValue(ctx context.Context, name string) error {
	if err := k.check(); err != nil {
		return err
	}
	if !k.writable {
		return hive.ErrReadOnly
	}
	return mapErr(k.k.DeleteValue(name), hive.ErrValueNotFound)
}

func (k *key) DeleteSubKey(ctx context.Context, path string) error {
	p, err := k.deletable(path)
	if err != nil {
		return err
	}

	sub, err := registry.OpenKey(k.k, p, registry.QUERY_VALUE)
	if err != nil {
		return mapErr(err, hive.ErrKeyNotFound)
	}
	info, err := sub.Stat()
	sub.Close()
	if err != nil {
		return mapErr(err, hive.ErrKeyNotFound)
	}
	if info.SubKeyCount > 0 {
		return hive.ErrHasSubKeys
	}
	return mapErr(registry.DeleteKey(k.k, p), hive.ErrKeyNotFound)
}

func (k *key) DeleteSubKeyTree(ctx context.Context, path string) error {
	p, err := k.deletable(path)
	if err != nil {
		return err
	}
	return mapErr(deleteTree(k.k, p), hive.ErrKeyNotFound)
}

func (k *key) deletable(path string) (string, error) {
	segments, err := hive.SplitPath(path)
	if err != nil {
		return "", err
	}
	if len(segments) == 0 {
		return "", fmt.Errorf("%w: cannot delete the key itself", hive.ErrInvalidPath)
	}
	if err := k.check(); err != nil {
		return "", err
	}
	if !k.writable {
		return "", hive.ErrReadOnly
	}
	return hive.JoinPath(segments...), nil
}

func (k *key) stat() (*registry.KeyInfo, error) {
	if err := k.check(); err != nil {
		return nil, err
	}
	info, err := k.k.Stat()
	if err != nil {
		return nil, mapErr(err, hive.ErrKeyNotFound)
	}
	return info, nil
}

func (k *key) ValueCount(ctx context.Context) (int, error) {
	info, err := k.stat()
	if err != nil {
		return 0, err
	}
	return int(info.ValueCount), nil
}

func (k *key) SubKeyCount(ctx context.Context) (int, error) {
	info, err := k.stat()
	if err != nil {
		return 0, err
	}
	return int(info.SubKeyCount), nil
}

func (k *key) ValueNames(ctx context.Context) ([]string, error) {
	if err := k.check(); err != nil {
		return nil, err
	}
	names, err := k.k.ReadValueNames(-1)
	if err != nil {
		return nil, mapErr(err, hive.ErrKeyNotFound)
	}
	sortFolded(names)
	return names, nil
}

func (k *key) SubKeyNames(ctx context.Context) ([]string, error) {
	if err := k.check(); err != nil {
		return nil, err
	}
	names, err := k.k.ReadSubKeyNames(-1)
	if err != nil {
		return nil, mapErr(err, hive.ErrKeyNotFound)
	}
	sortFolded(names)
	return names, nil
}

func (k *key) Close() error {
	if k.closed.Swap(true) || k.predefined {
		return nil
	}
	return k.k.Close()
}

func sortFolded(names []string) {
	sort.Slice(names, func(i, j int) bool { return hive.Fold(names[i]) < hive.Fold(names[j]) })
}
