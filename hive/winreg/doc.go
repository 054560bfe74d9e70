// Package winreg adapts the Windows registry to hive.Key.
//
// Handles wrap registry keys from golang.org/x/sys/windows/registry. Sections are
// created through RegCreateKeyExW so the volatile and backup-restore options reach
// the registry unchanged. Registry errors are mapped onto the hive sentinels:
// ERROR_FILE_NOT_FOUND becomes ErrKeyNotFound or ErrValueNotFound, ERROR_KEY_DELETED
// becomes ErrKeyDeleted, ERROR_CHILD_MUST_BE_VOLATILE becomes ErrChildMustBeVolatile
// and ERROR_ACCESS_DENIED becomes ErrAccessDenied.
//
// On other platforms Root reports hive.ErrUnsupported.
package winreg
