//go:build windows

package linker

import (
	"encoding/binary"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/windows"
)

// Windows has no symlink-to-directory primitive that works without
// elevated privilege, so this file creates a directory junction instead:
// a reparse point the shell and Node.js module resolution both follow
// transparently, built directly with DeviceIoControl since the standard
// library exposes no junction API.
const (
	reparseTagMountPoint    = 0xA0000003
	fsctlSetReparsePoint    = 0x000900A4
	invalidHandleValue      = ^uintptr(0)
	maximumReparseDataSize  = 16 * 1024
)

func linkDirectory(targetPath, linkPath string) error {
	if err := os.MkdirAll(linkPath, 0o777); err != nil {
		return err
	}

	buf, err := buildMountPointReparseBuffer(targetPath)
	if err != nil {
		_ = os.Remove(linkPath)
		return err
	}

	pathPtr, err := windows.UTF16PtrFromString(linkPath)
	if err != nil {
		return err
	}

	handle, err := windows.CreateFile(
		pathPtr,
		windows.GENERIC_WRITE,
		0,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_FLAG_BACKUP_SEMANTICS|windows.FILE_FLAG_OPEN_REPARSE_POINT,
		0,
	)
	if err != nil {
		_ = os.Remove(linkPath)
		return err
	}
	defer windows.CloseHandle(handle)

	var bytesReturned uint32
	return windows.DeviceIoControl(
		handle,
		fsctlSetReparsePoint,
		&buf[0],
		uint32(len(buf)),
		nil,
		0,
		&bytesReturned,
		nil,
	)
}

// buildMountPointReparseBuffer constructs a REPARSE_DATA_BUFFER
// describing a mount-point (junction) reparse point targeting
// targetPath, per the documented on-disk format in ntifs.h.
func buildMountPointReparseBuffer(targetPath string) ([]byte, error) {
	// Junctions require the NT "\??\" device-path prefix and an absolute
	// target with a trailing separator.
	abs, err := windowsAbs(targetPath)
	if err != nil {
		return nil, err
	}
	substitute := `\??\` + abs
	if substitute[len(substitute)-1] != '\\' {
		substitute += `\`
	}
	printName := abs

	substituteUTF16, _ := syscall.UTF16FromString(substitute)
	printUTF16, _ := syscall.UTF16FromString(printName)

	substituteBytes := utf16ToBytes(substituteUTF16[:len(substituteUTF16)-1])
	printBytes := utf16ToBytes(printUTF16[:len(printUTF16)-1])

	pathBufferLen := len(substituteBytes) + 2 + len(printBytes) + 2
	dataLen := 8 + pathBufferLen
	total := 8 + dataLen

	if total > maximumReparseDataSize {
		return nil, fmt.Errorf("junction target %q too long", targetPath)
	}

	buf := make([]byte, total)
	binary.LittleEndian.PutUint32(buf[0:4], reparseTagMountPoint)
	binary.LittleEndian.PutUint16(buf[4:6], uint16(dataLen))
	// buf[6:8] reserved, left zero.

	binary.LittleEndian.PutUint16(buf[8:10], 0)                                   // SubstituteNameOffset
	binary.LittleEndian.PutUint16(buf[10:12], uint16(len(substituteBytes)))       // SubstituteNameLength
	binary.LittleEndian.PutUint16(buf[12:14], uint16(len(substituteBytes)+2))     // PrintNameOffset
	binary.LittleEndian.PutUint16(buf[14:16], uint16(len(printBytes)))            // PrintNameLength

	offset := 16
	copy(buf[offset:], substituteBytes)
	offset += len(substituteBytes) + 2
	copy(buf[offset:], printBytes)

	return buf, nil
}

func utf16ToBytes(u []uint16) []byte {
	b := make([]byte, len(u)*2)
	for i, v := range u {
		binary.LittleEndian.PutUint16(b[i*2:], v)
	}
	return b
}

func windowsAbs(p string) (string, error) {
	ptr, err := windows.UTF16PtrFromString(p)
	if err != nil {
		return "", err
	}
	var buf [windows.MAX_PATH]uint16
	n, err := windows.GetFullPathName(ptr, uint32(len(buf)), &buf[0], nil)
	if err != nil {
		return "", err
	}
	return windows.UTF16ToString(buf[:n]), nil
}

// readLinkDirectory returns the print name a junction at linkPath
// resolves to, an os.IsNotExist-satisfying error if nothing is there, or
// errNotALink if linkPath exists but isn't a reparse point. errNotALink
// must not satisfy os.IsNotExist: os.Lstat's reparse-point bit is the
// only reliable signal here, and syscall.ENOENT's Is(fs.ErrNotExist)
// happens to return true, so an ENOENT-flavored error would get treated
// by the caller as "nothing here, safe to create" and silently overwrite
// whatever is already at linkPath instead of reporting a conflict.
func readLinkDirectory(linkPath string) (string, error) {
	fi, err := os.Lstat(linkPath)
	if err != nil {
		return "", err
	}
	if fi.Mode()&os.ModeSymlink == 0 {
		return "", errNotALink
	}
	return os.Readlink(linkPath)
}
