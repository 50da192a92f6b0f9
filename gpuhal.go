// Copyright 2022 Gustavo C. Viegas. All rights reserved.

// Package gpuhal defines a uniform interface over explicit graphics
// APIs (D3D12 on Windows, Vulkan elsewhere). Client code (a renderer)
// produces an encoded stream of GPU commands (see package cmdstream)
// and an immutable set of resource/pipeline objects addressed by
// opaque handles (see package handle); a Backend translates these to
// native API calls.
//
// This package is designed to allow platform-specific backends to be
// implemented in a mostly straightforward manner, following the same
// registration pattern used throughout the driver package this module
// is built from: backend packages call Register from an init function,
// and client code selects among the registered Drivers by name.
package gpuhal

import (
	"errors"
	"log"
	"sync"
)

// Driver is the interface that provides methods for loading and
// unloading a backend implementation.
type Driver interface {
	// Open initializes the driver and returns the Backend.
	// If it succeeds, further calls with the same receiver have no
	// effect and must return the same Backend.
	// Callers should assume that Open is not safe for parallel
	// execution.
	Open(cfg Config) (Backend, error)

	// Name returns the name of the driver. It must not cause the
	// driver to be opened.
	Name() string

	// Close deinitializes the driver. Closing a driver that is not
	// open has no effect.
	// Callers should assume that Close is not safe for parallel
	// execution.
	Close()
}

// Errors returned by Driver.Open and Backend methods.
var (
	// ErrNotInstalled means that a platform-specific library required
	// for the driver to work is not present in the system.
	ErrNotInstalled = errors.New("gpuhal: missing required library")

	// ErrNoDevice means that no suitable device could be found.
	ErrNoDevice = errors.New("gpuhal: no suitable device found")

	// ErrValidationUnavailable means validation was requested but the
	// backend could not enable it.
	ErrValidationUnavailable = errors.New("gpuhal: validation requested but unavailable")

	// ErrFatal means that the backend is in an unrecoverable state.
	// Upon encountering such an error, the application must destroy
	// everything it created using the backend and then call Destroy.
	ErrFatal = errors.New("gpuhal: fatal error")

	// ErrRaytracingUnavailable is returned by every raytracing entry
	// point when the backend was not configured with EnableRaytracing,
	// or when the active backend has no raytracing support at all.
	// Per spec: ray tracing degrades to an error-returning stub rather
	// than being emulated.
	ErrRaytracingUnavailable = errors.New("gpuhal: raytracing not enabled on this backend")

	// ErrSwapchainOutOfDate is returned by Present (and internally
	// triggers a resize) when the surface geometry changed since the
	// swapchain was created or last resized.
	ErrSwapchainOutOfDate = errors.New("gpuhal: swapchain out of date")

	// ErrInvalidHandle is returned when a client-supplied handle is
	// null, out of range, or addresses a slot that has since been
	// freed (a stale generation) — the recoverable counterpart of the
	// handle package's use-after-free panic, for entry points that
	// must report client error rather than crash.
	ErrInvalidHandle = errors.New("gpuhal: invalid or stale handle")
)

// InitStatus is returned by Driver.Open (via the returned error, using
// errors.Is against the sentinels below, and directly by backends
// that want a finer-grained code) to report why initialization failed.
type InitStatus int

// Initialization statuses.
const (
	StatusSuccess InitStatus = iota
	StatusNoAdapterFound
	StatusBackendUnsupported
	StatusValidationRequestedButUnavailable
	StatusOther
)

func (s InitStatus) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusNoAdapterFound:
		return "no_adapter_found"
	case StatusBackendUnsupported:
		return "backend_unsupported"
	case StatusValidationRequestedButUnavailable:
		return "validation_requested_but_unavailable"
	default:
		return "other"
	}
}

// Drivers returns the registered Drivers.
// Client code imports specific backend packages, which call Register
// from init; drivers that do not register themselves on init will not
// be considered for selection.
func Drivers() []Driver {
	mu.Lock()
	defer mu.Unlock()
	drv := make([]Driver, len(drivers))
	copy(drv, drivers)
	return drv
}

// Register registers a Driver. Driver implementations are expected to
// call Register exactly once, from an init function. If a driver with
// the same name has already been registered, it will be replaced.
func Register(drv Driver) {
	mu.Lock()
	defer mu.Unlock()
	for i := range drivers {
		if drivers[i].Name() == drv.Name() {
			drivers[i] = drv
			log.Printf("[!] gpuhal: driver '%s' replaced", drv.Name())
			return
		}
	}
	drivers = append(drivers, drv)
	log.Printf("gpuhal: driver '%s' registered", drv.Name())
}

var (
	mu      sync.Mutex
	drivers []Driver = make([]Driver, 0, 2)
)

// BackendType identifies which native API a Backend translates to.
type BackendType int

// Backend types.
const (
	BackendVulkan BackendType = iota
	BackendD3D12
)

func (t BackendType) String() string {
	if t == BackendD3D12 {
		return "d3d12"
	}
	return "vulkan"
}
