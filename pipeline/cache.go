// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package pipeline

import (
	"github.com/gogpu/framepump"
	"github.com/gogpu/framepump/driver"
	"github.com/gogpu/framepump/internal/cache"
	"github.com/gogpu/wgpu/hal"
)

// DefaultCacheSize is the module limit used when CacheOptions.Size is zero.
const DefaultCacheSize = 64

// minCacheSize keeps both modules of one raster Build resident.
const minCacheSize = 2

// CacheOptions configures a Cache.
type CacheOptions struct {
	// Size is the maximum number of cached modules, at least 2.
	Size int
	// SPIRV creates modules from SPIR-V compiled with naga instead of
	// passing WGSL to the backend.
	SPIRV bool
}

// module is a shader module with the entry points of its source.
type module struct {
	mod     hal.ShaderModule
	entries []EntryPoint
}

// Cache holds shader modules keyed by WGSL source. Evicted modules are
// destroyed; pipelines built from them stay valid. Builds sharing a Cache
// must not run concurrently, or one may evict a module the other is about
// to use.
type Cache struct {
	dev     hal.Device
	spirv   bool
	modules *cache.Cache[string, *module]
}

// NewCache returns a module cache for dev.
func NewCache(dev hal.Device, opts CacheOptions) *Cache {
	size := opts.Size
	if size <= 0 {
		size = DefaultCacheSize
	}
	size = max(size, minCacheSize)
	c := &Cache{dev: dev, spirv: opts.SPIRV}
	c.modules = cache.New[string, *module](size, func(_ string, m *module) {
		framepump.Logger().Debug("pipeline: shader module released")
		dev.DestroyShaderModule(m.mod)
	})
	return c
}

// Len returns the number of cached modules.
func (c *Cache) Len() int { return c.modules.Len() }

// Close destroys every cached module.
func (c *Cache) Close() { c.modules.Clear() }

func (c *Cache) get(label, src string) (*module, error) {
	return c.modules.GetOrCreate(src, func() (*module, error) {
		return createModule(c.dev, label, src, c.spirv)
	})
}

func createModule(dev hal.Device, label, src string, spirv bool) (*module, error) {
	eps, err := EntryPoints(src)
	if err != nil {
		return nil, driver.CreateError("shader module", label, err)
	}
	desc := &hal.ShaderModuleDescriptor{Label: label}
	if spirv {
		words, err := Compile(src)
		if err != nil {
			return nil, driver.CreateError("shader module", label, err)
		}
		desc.Source.SPIRV = words
	} else {
		desc.Source.WGSL = src
	}
	mod, err := dev.CreateShaderModule(desc)
	if err != nil {
		return nil, driver.CreateError("shader module", label, err)
	}
	return &module{mod: mod, entries: eps}, nil
}
