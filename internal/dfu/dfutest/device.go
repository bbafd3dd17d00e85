// Package dfutest provides an in-memory Secure DFU target for engine tests.
// Responses are delivered asynchronously on the device's own goroutine, the
// way a BLE stack calls back into the engine.
package dfutest

import (
	"errors"
	"strings"
	"sync"

	"github.com/strobo-inc/nrf52-desktop-dfu/internal/protocol"
)

// DefaultMaxSize is the object size limit a Select response reports.
const DefaultMaxSize = 4096

// Request is a recorded write-with-response.
type Request struct {
	Char    string
	Opcode  byte
	Payload []byte
}

type notification struct {
	char string
	data []byte
}

type object struct {
	data      []byte
	committed int
	end       int
}

// Device simulates a bootloader (and the application's buttonless service).
type Device struct {
	mu        sync.Mutex
	requests  []Request
	sent      [][]byte
	packets   int
	objects   map[protocol.ObjectType]*object
	current   protocol.ObjectType
	maxSize   uint32
	mtu       int
	prn       uint16
	advName   string
	rejects   map[byte]byte
	script    [][]byte
	muted     bool
	writeErr  error
	loseTail  int
	loseTimes int
	corrupt   bool
	closed    bool
	execCount int

	handlerMu sync.Mutex
	handler   func(service, char string, data []byte)

	out  chan notification
	done chan struct{}
}

// Option configures a Device.
type Option func(*Device)

// WithMaxSize sets the object size limit reported by Select.
func WithMaxSize(n uint32) Option {
	return func(d *Device) { d.maxSize = n }
}

// WithMTU sets the ATT MTU reported through MTU().
func WithMTU(n int) Option {
	return func(d *Device) { d.mtu = n }
}

// New starts a device. Call Close when done.
func New(opts ...Option) *Device {
	d := &Device{
		objects: map[protocol.ObjectType]*object{
			protocol.ObjectCommand: {},
			protocol.ObjectData:    {},
		},
		maxSize: DefaultMaxSize,
		mtu:     protocol.DefaultATTMTU,
		rejects: map[byte]byte{},
		out:     make(chan notification, 64),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	go d.loop()
	return d
}

func (d *Device) loop() {
	defer close(d.done)
	for n := range d.out {
		d.handlerMu.Lock()
		h := d.handler
		d.handlerMu.Unlock()
		if h != nil {
			h(protocol.SecureDFUServiceUUID, n.char, n.data)
		}
	}
}

// Subscribe registers the engine callback for notifications and indications.
func (d *Device) Subscribe(h func(service, char string, data []byte)) {
	d.handlerMu.Lock()
	d.handler = h
	d.handlerMu.Unlock()
}

// Close stops the delivery goroutine and waits for it.
func (d *Device) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.out)
	}
	d.mu.Unlock()
	<-d.done
}

// MTU implements dfu.MTUProvider.
func (d *Device) MTU() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mtu
}

// Reject makes every request with opcode op fail with status.
func (d *Device) Reject(op byte, status byte) {
	d.mu.Lock()
	d.rejects[op] = status
	d.mu.Unlock()
}

// Script queues raw frames sent instead of the computed responses, one per request.
func (d *Device) Script(frames ...[]byte) {
	d.mu.Lock()
	d.script = append(d.script, frames...)
	d.mu.Unlock()
}

// Mute stops all responses.
func (d *Device) Mute() {
	d.mu.Lock()
	d.muted = true
	d.mu.Unlock()
}

// FailWrites makes every subsequent write return err.
func (d *Device) FailWrites(err error) {
	d.mu.Lock()
	d.writeErr = err
	d.mu.Unlock()
}

// LoseTail drops the last n received bytes of the current object before
// answering each of the next times CalcChecksum requests, as if those
// packets never arrived.
func (d *Device) LoseTail(n, times int) {
	d.mu.Lock()
	d.loseTail = n
	d.loseTimes = times
	d.mu.Unlock()
}

// CorruptNext flips a bit in the next packet received.
func (d *Device) CorruptNext() {
	d.mu.Lock()
	d.corrupt = true
	d.mu.Unlock()
}

// Preload seeds an object as if a previous run had sent data. committed bytes
// are already executed; end is where the currently created object stops.
func (d *Device) Preload(t protocol.ObjectType, data []byte, committed, end int) {
	d.mu.Lock()
	d.objects[t] = &object{data: append([]byte(nil), data...), committed: committed, end: end}
	d.mu.Unlock()
}

// Requests returns every write-with-response received so far.
func (d *Device) Requests() []Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Request(nil), d.requests...)
}

// Count returns how many requests carried opcode op.
func (d *Device) Count(op byte) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, r := range d.requests {
		if r.Opcode == op && strings.EqualFold(r.Char, protocol.ControlPointCharUUID) {
			n++
		}
	}
	return n
}

// Packets returns the number of packet characteristic writes received.
func (d *Device) Packets() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.packets
}

// Executed returns how many objects were executed.
func (d *Device) Executed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.execCount
}

// Received returns the bytes held for an object type.
func (d *Device) Received(t protocol.ObjectType) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.objects[t].data...)
}

// Committed returns how many bytes of an object type were executed.
func (d *Device) Committed(t protocol.ObjectType) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.objects[t].committed
}

// AdvName returns the advertising name set through the buttonless service.
func (d *Device) AdvName() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.advName
}

// Sent returns every frame the device has queued for delivery.
func (d *Device) Sent() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([][]byte(nil), d.sent...)
}

// WriteCommand implements dfu.Transport for the packet characteristic.
func (d *Device) WriteCommand(service, char string, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.writeErr != nil {
		return d.writeErr
	}
	if !strings.EqualFold(char, protocol.PacketCharUUID) {
		return errors.New("write command on non-packet characteristic " + char)
	}
	d.packets++
	chunk := append([]byte(nil), data...)
	if d.corrupt && len(chunk) > 0 {
		chunk[0] ^= 0x01
		d.corrupt = false
	}
	obj := d.objects[d.current]
	obj.data = append(obj.data, chunk...)
	return nil
}

// WriteRequest implements dfu.Transport for the control point and the
// buttonless characteristics.
func (d *Device) WriteRequest(service, char string, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.writeErr != nil {
		return d.writeErr
	}
	op, payload, err := protocol.DecodeRequest(data)
	if err != nil {
		return err
	}
	d.requests = append(d.requests, Request{Char: char, Opcode: op, Payload: payload})

	if d.muted || d.closed {
		return nil
	}
	if len(d.script) > 0 {
		d.emit(char, d.script[0])
		d.script = d.script[1:]
		return nil
	}

	var resp []byte
	switch {
	case strings.EqualFold(char, protocol.ControlPointCharUUID):
		resp = d.handleControl(protocol.Opcode(op), payload)
	case strings.EqualFold(char, protocol.ButtonlessCharUUID), strings.EqualFold(char, protocol.ButtonlessBondedCharUUID):
		resp = d.handleButtonless(protocol.ButtonlessOp(op), payload)
	default:
		return errors.New("write request on unknown characteristic " + char)
	}
	d.emit(char, resp)
	return nil
}

func (d *Device) emit(char string, frame []byte) {
	d.sent = append(d.sent, frame)
	d.out <- notification{char: char, data: frame}
}

func (d *Device) handleButtonless(op protocol.ButtonlessOp, payload []byte) []byte {
	if status, ok := d.rejects[byte(op)]; ok {
		return protocol.EncodeResponse(op, status)
	}
	switch op {
	case protocol.ButtonlessSetAdvName:
		if len(payload) < 1 || int(payload[0]) != len(payload)-1 || payload[0] == 0 || payload[0] > protocol.MaxAdvNameLength {
			return protocol.EncodeResponse(op, byte(protocol.ButtonlessInvalidAdvName))
		}
		d.advName = string(payload[1:])
		return protocol.EncodeResponse(op, byte(protocol.ButtonlessSuccess))
	case protocol.ButtonlessEnterBootloader:
		return protocol.EncodeResponse(op, byte(protocol.ButtonlessSuccess))
	default:
		return protocol.EncodeResponse(op, byte(protocol.ButtonlessOpNotSupported))
	}
}

func (d *Device) handleControl(op protocol.Opcode, payload []byte) []byte {
	if status, ok := d.rejects[byte(op)]; ok {
		return protocol.EncodeResponse(op, status)
	}
	fail := func(r protocol.Result) []byte { return protocol.EncodeResponse(op, byte(r)) }
	ok := func(p ...[]byte) []byte { return protocol.EncodeResponse(op, byte(protocol.ResultSuccess), p...) }

	switch op {
	case protocol.OpSetPRN:
		if len(payload) != 2 {
			return fail(protocol.ResultInvalidParameter)
		}
		d.prn = uint16(payload[0]) | uint16(payload[1])<<8
		return ok()

	case protocol.OpSelect:
		if len(payload) != 1 {
			return fail(protocol.ResultInvalidParameter)
		}
		t := protocol.ObjectType(payload[0])
		obj, found := d.objects[t]
		if !found {
			return fail(protocol.ResultUnsupportedType)
		}
		d.current = t
		return ok(protocol.SelectPayload(protocol.SelectResult{
			MaxSize: d.maxSize,
			Offset:  uint32(len(obj.data)),
			CRC:     protocol.CRC32(obj.data),
		}))

	case protocol.OpCreate:
		if len(payload) != 5 {
			return fail(protocol.ResultInvalidParameter)
		}
		t := protocol.ObjectType(payload[0])
		obj, found := d.objects[t]
		if !found {
			return fail(protocol.ResultUnsupportedType)
		}
		size := uint32(payload[1]) | uint32(payload[2])<<8 | uint32(payload[3])<<16 | uint32(payload[4])<<24
		if size == 0 || size > d.maxSize {
			return fail(protocol.ResultInsufficientResources)
		}
		if t == protocol.ObjectCommand {
			obj.committed = 0
		}
		obj.data = obj.data[:obj.committed]
		obj.end = obj.committed + int(size)
		d.current = t
		return ok()

	case protocol.OpCalcChecksum:
		obj := d.objects[d.current]
		if d.loseTimes > 0 {
			cut := max(len(obj.data)-d.loseTail, obj.committed)
			obj.data = obj.data[:cut]
			d.loseTimes--
		}
		return ok(protocol.ChecksumPayload(protocol.ChecksumResult{
			Offset: uint32(len(obj.data)),
			CRC:    protocol.CRC32(obj.data),
		}))

	case protocol.OpExecute:
		obj := d.objects[d.current]
		if len(obj.data) == obj.committed || len(obj.data) != obj.end {
			return fail(protocol.ResultOperationNotPermitted)
		}
		obj.committed = len(obj.data)
		d.execCount++
		return ok()

	case protocol.OpPing:
		if len(payload) != 1 {
			return fail(protocol.ResultInvalidParameter)
		}
		return ok(payload)

	case protocol.OpGetMTU:
		return ok([]byte{byte(d.mtu), byte(d.mtu >> 8)})

	case protocol.OpAbort:
		for _, obj := range d.objects {
			obj.data = obj.data[:obj.committed]
		}
		return ok()

	default:
		return fail(protocol.ResultOpNotSupported)
	}
}
