package cache

import (
	"strconv"
	"testing"
)

func BenchmarkCacheGet(b *testing.B) {
	c := New[string, int](1000, nil)
	for i := 0; i < 100; i++ {
		_, _ = c.GetOrCreate(strconv.Itoa(i), func() (int, error) { return i, nil })
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Get("50")
	}
}

func BenchmarkCacheGetOrCreate(b *testing.B) {
	c := New[string, int](1000, nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = c.GetOrCreate(strconv.Itoa(i%100), func() (int, error) {
			return i, nil
		})
	}
}

func BenchmarkCacheEvict(b *testing.B) {
	c := New[int, int](64, func(int, int) {})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = c.GetOrCreate(i, func() (int, error) { return i, nil })
	}
}

func BenchmarkCacheParallel(b *testing.B) {
	c := New[string, int](1000, nil)
	for i := 0; i < 100; i++ {
		_, _ = c.GetOrCreate(strconv.Itoa(i), func() (int, error) { return i, nil })
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			c.Get(strconv.Itoa(i % 100))
			i++
		}
	})
}
