package loader

import (
	"bytes"
	"sync"
	"sync/atomic"
)

// maxPooledBuffer caps the buffers kept for reuse; larger ones are dropped.
const maxPooledBuffer = 16 << 20

var bufferPool = sync.Pool{
	New: func() any {
		bufferPoolNews.Add(1)
		return bytes.NewBuffer(make([]byte, 0, 256<<10))
	},
}

var bufferPoolGets atomic.Uint64
var bufferPoolNews atomic.Uint64

func getBuffer() *bytes.Buffer {
	bufferPoolGets.Add(1)
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

func putBuffer(buf *bytes.Buffer) {
	if buf == nil || buf.Cap() > maxPooledBuffer {
		return
	}
	buf.Reset()
	bufferPool.Put(buf)
}

// BufferPoolStats returns the total pool hits and misses since process start.
func BufferPoolStats() (hits uint64, misses uint64) {
	gets := bufferPoolGets.Load()
	news := bufferPoolNews.Load()
	if gets >= news {
		return gets - news, news
	}
	return 0, news
}
