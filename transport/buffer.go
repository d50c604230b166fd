// Package transport implements the framing codec, the growable receive
// buffer, and the Connection abstraction (TCP, WebSocket, reconnecting TCP
// client) described in spec §4.1-§4.3.
package transport

import "math"

// DynamicBuffer is a growable byte buffer with independent read/write
// cursors, modeled on the original's src/framework/data/dynamic_buffer.rs:
// growth happens in whole multiples of expandSize rather than naive
// doubling, and the buffer self-clears once fully drained.
type DynamicBuffer struct {
	buf        []byte
	expandSize int
	readIndex  int
	writeIndex int
}

// NewDynamicBuffer creates a buffer with the given initial capacity and
// growth increment.
func NewDynamicBuffer(initSize, expandSize int) *DynamicBuffer {
	if expandSize <= 0 {
		expandSize = 1024
	}
	return &DynamicBuffer{
		buf:        make([]byte, 0, initSize),
		expandSize: expandSize,
	}
}

func (d *DynamicBuffer) Capacity() int        { return cap(d.buf) }
func (d *DynamicBuffer) ReadableBytes() int    { return d.writeIndex - d.readIndex }
func (d *DynamicBuffer) WritableBytes() int    { return cap(d.buf) - d.writeIndex }
func (d *DynamicBuffer) DiscardableBytes() int { return d.readIndex }
func (d *DynamicBuffer) IsEmpty() bool         { return d.ReadableBytes() == 0 }

// ReadableSlice returns the unconsumed portion of the buffer. The slice
// aliases internal storage and is only valid until the next mutating call.
func (d *DynamicBuffer) ReadableSlice() []byte {
	return d.buf[d.readIndex:d.writeIndex]
}

// Advance moves the read cursor forward by n bytes (clamped to what is
// readable), self-clearing once the cursor catches up to the write cursor.
func (d *DynamicBuffer) Advance(n int) {
	if n > d.ReadableBytes() {
		n = d.ReadableBytes()
	}
	d.readIndex += n
	if d.readIndex == d.writeIndex {
		d.Clear()
	}
}

// Clear resets both cursors without releasing the underlying array.
func (d *DynamicBuffer) Clear() {
	d.readIndex = 0
	d.writeIndex = 0
	d.buf = d.buf[:0]
}

// Compact removes already-read bytes by shifting the readable region to
// the front of the underlying array.
func (d *DynamicBuffer) Compact() {
	if d.readIndex == 0 {
		return
	}
	readable := d.ReadableBytes()
	if readable == 0 {
		d.Clear()
		return
	}
	copy(d.buf[:readable], d.buf[d.readIndex:d.writeIndex])
	d.readIndex = 0
	d.writeIndex = readable
	d.buf = d.buf[:d.writeIndex]
}

// ReserveWritable grows the buffer, in whole multiples of expandSize, so
// that at least size additional bytes can be written without reallocating
// again.
func (d *DynamicBuffer) ReserveWritable(size int) {
	if d.WritableBytes() >= size {
		return
	}
	free := d.DiscardableBytes() + d.WritableBytes()
	newCap := cap(d.buf)
	if free >= size {
		newCap += d.expandSize
	} else {
		needed := size - free
		count := needed/d.expandSize + 1
		newCap += d.expandSize * count
	}

	readable := d.ReadableBytes()
	nb := make([]byte, readable, newCap)
	copy(nb, d.buf[d.readIndex:d.writeIndex])
	d.buf = nb
	d.readIndex = 0
	d.writeIndex = readable
}

// WriteSlice appends data, growing the buffer as needed (the receive-loop
// entry point: bytes freshly read off a socket are appended here).
func (d *DynamicBuffer) WriteSlice(data []byte) {
	if len(data) == 0 {
		return
	}
	d.ReserveWritable(len(data))
	d.buf = d.buf[:d.writeIndex+len(data)]
	copy(d.buf[d.writeIndex:], data)
	d.writeIndex += len(data)
}

// WritableTail exposes the unused tail of the backing array for a caller
// that wants to read directly from a net.Conn into the buffer (avoiding a
// copy); Commit must be called afterward with the number of bytes placed.
func (d *DynamicBuffer) WritableTail(minSize int) []byte {
	d.ReserveWritable(minSize)
	return d.buf[d.writeIndex:cap(d.buf)]
}

// Commit records that n bytes were written directly into the slice
// returned by WritableTail.
func (d *DynamicBuffer) Commit(n int) {
	if n <= 0 {
		return
	}
	d.writeIndex += n
	if d.writeIndex > len(d.buf) {
		d.buf = d.buf[:d.writeIndex]
	}
}

// maxReserve is the int32 ceiling for a single expand request.
// ReserveWritable does not consult it; frame sizes are bounded instead by
// TryFrame's maxPayload check (DefaultMaxPayload in frame.go).
const maxReserve = math.MaxInt32
