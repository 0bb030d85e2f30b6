// Package cache provides a generic LRU cache for values that own external
// resources.
//
// Entries leave the cache through eviction, Delete or Clear, and every
// departure runs the eviction callback exactly once, outside the cache
// lock:
//
//	modules := cache.New[string, hal.ShaderModule](32, func(_ string, m hal.ShaderModule) {
//		device.DestroyShaderModule(m)
//	})
//	mod, err := modules.GetOrCreate(src, func() (hal.ShaderModule, error) {
//		return device.CreateShaderModule(desc)
//	})
//
// # Thread Safety
//
// Cache is safe for concurrent use and must not be copied after creation.
package cache
