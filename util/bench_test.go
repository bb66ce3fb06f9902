package util

import (
	"io"
	"testing"
)

// BenchmarkBufPool measures the get/put cycle used by every transport
// read loop.
func BenchmarkBufPool(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		buf := GetBuf()
		(*buf)[0] = byte(i)
		PutBuf(buf)
	}
}

// BenchmarkLogger_Suppressed measures the cost of a log call below the
// configured level, the common case for Debug in production.
func BenchmarkLogger_Suppressed(b *testing.B) {
	l := NewLogger(1)
	l.SetOutput(io.Discard)

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		l.Debug("listener %s: binding %s transport", "web1", "http")
	}
}
