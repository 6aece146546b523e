package capture

import (
	"errors"
	"io/fs"
	"strings"
	"syscall"
)

// InsecureContextError is returned when the camera is requested from a
// context that may republish the feed to untrusted peers.
type InsecureContextError struct{}

func (e *InsecureContextError) Error() string { return "camera requires a secure context" }

// Status returns the user-facing description of the failure.
func (e *InsecureContextError) Status() string {
	return "camera requires a secure connection (serve over https or localhost)"
}

// CameraUnavailableError is returned when no camera API is configured.
type CameraUnavailableError struct{}

func (e *CameraUnavailableError) Error() string { return "camera api unavailable" }

// Status returns the user-facing description of the failure.
func (e *CameraUnavailableError) Status() string { return "camera unavailable" }

// PermissionDeniedError is returned when the OS refused access to the device.
type PermissionDeniedError struct{ Err error }

func (e *PermissionDeniedError) Error() string { return "camera permission denied: " + e.Err.Error() }
func (e *PermissionDeniedError) Unwrap() error { return e.Err }

// Status returns the user-facing description of the failure.
func (e *PermissionDeniedError) Status() string { return "camera permission denied" }

// DeviceNotFoundError is returned when the requested device does not exist.
type DeviceNotFoundError struct{ Err error }

func (e *DeviceNotFoundError) Error() string { return "camera not found: " + e.Err.Error() }
func (e *DeviceNotFoundError) Unwrap() error { return e.Err }

// Status returns the user-facing description of the failure.
func (e *DeviceNotFoundError) Status() string { return "no camera found" }

// GenericCameraError covers every other open failure.
type GenericCameraError struct{ Err error }

func (e *GenericCameraError) Error() string { return "camera error: " + e.Err.Error() }
func (e *GenericCameraError) Unwrap() error { return e.Err }

// Status returns the user-facing description of the failure.
func (e *GenericCameraError) Status() string { return "camera error" }

// ClassifyOpenError maps a raw open failure onto the camera error taxonomy.
//
// Error identity is checked first (fs and errno values surfaced by V4L2 and
// AVFoundation wrappers); backends that only report text fall through to
// keyword matching. Errors that are already classified are returned as is.
func ClassifyOpenError(err error) error {
	if err == nil {
		return nil
	}

	var (
		pd *PermissionDeniedError
		nf *DeviceNotFoundError
		ge *GenericCameraError
	)
	if errors.As(err, &pd) || errors.As(err, &nf) || errors.As(err, &ge) {
		return err
	}

	switch {
	case errors.Is(err, fs.ErrPermission), errors.Is(err, syscall.EACCES), errors.Is(err, syscall.EPERM):
		return &PermissionDeniedError{Err: err}
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ENODEV), errors.Is(err, syscall.ENXIO):
		return &DeviceNotFoundError{Err: err}
	}

	msg := strings.ToLower(err.Error())
	if containsAny(msg, permissionKeywords) {
		return &PermissionDeniedError{Err: err}
	}
	if containsAny(msg, notFoundKeywords) {
		return &DeviceNotFoundError{Err: err}
	}
	return &GenericCameraError{Err: err}
}

var permissionKeywords = []string{
	"permission",
	"denied",
	"not allowed",
	"not authorized",
	"unauthorized",
}

var notFoundKeywords = []string{
	"not found",
	"no such device",
	"no such file",
	"no camera",
	"error opening device",
	"can't open camera",
}

func containsAny(msg string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}
