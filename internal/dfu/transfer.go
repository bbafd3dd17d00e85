package dfu

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/strobo-inc/nrf52-desktop-dfu/internal/logger"
	"github.com/strobo-inc/nrf52-desktop-dfu/internal/protocol"
)

// Transfer streams an init packet and a firmware image to a device running
// the Secure DFU bootloader.
type Transfer struct {
	endpoint
	initPacket []byte
	firmware   []byte
	state      atomic.Int32
	running    atomic.Bool

	// owned by the Run goroutine
	chunkSize int
	executed  int
}

// session is the per-object transfer bookkeeping.
type session struct {
	object protocol.ObjectType
	data   []byte

	// [start, end) is the window of the object currently created on the device
	start int
	end   int

	offset  int
	crc     uint32
	maxSize int

	sinceChecksum int
	retriesLeft   int

	// the last offset the device confirmed
	confirmed int

	// resumed objects may already have been executed by a previous run
	mayBeExecuted bool
}

// NewTransfer creates a transfer of initPacket (command object) and firmware
// (data object). Register Notify with the transport before calling Run.
func NewTransfer(transport Transport, initPacket, firmware []byte, opts ...Option) *Transfer {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	t := &Transfer{
		initPacket: initPacket,
		firmware:   firmware,
	}
	t.endpoint = endpoint{
		transport: transport,
		config:    cfg,
		prefix:    "dfu",
		inbound:   protocol.ControlPointCharUUID,
	}
	return t
}

// Notify is the transport callback for control point notifications.
func (t *Transfer) Notify(service, char string, data []byte) {
	t.deliver(service, char, data)
}

// State returns the current state; safe from any goroutine.
func (t *Transfer) State() TransferState {
	return TransferState(t.state.Load())
}

// ChunkSize returns the packet write size chosen by the last Run. Call it
// after Run returns.
func (t *Transfer) ChunkSize() int {
	return t.chunkSize
}

func (t *Transfer) setState(s TransferState) {
	if prev := t.State(); prev != s {
		logger.Trace(t.prefix, "%s -> %s", prev, s)
	}
	t.state.Store(int32(s))
}

// Run sends both objects and blocks until the transfer finishes or fails.
// It returns StateFinished with a nil error on success and StateFailed with
// a *TransferError otherwise.
func (t *Transfer) Run(ctx context.Context) (TransferState, error) {
	if !t.running.CompareAndSwap(false, true) {
		return t.State(), &TransferError{State: t.State(), Err: ErrConcurrentWait}
	}
	defer t.running.Store(false)

	t.setState(StateIdle)
	t.executed = 0

	if len(t.initPacket) == 0 || len(t.firmware) == 0 {
		return t.fail(&TransferError{State: StateIdle, Err: ErrEmptyImage})
	}

	b, done := t.open()
	defer done()

	t.chunkSize = t.resolveChunkSize()
	logger.Debug(t.prefix, "chunk size %d, prn %d, timeout %s", t.chunkSize, t.config.PRN, t.config.Timeout)

	// Receipts stay off on the device; checksums are requested explicitly.
	if _, err := request(ctx, &t.endpoint, b, protocol.ControlPointCharUUID, protocol.SetPRNPacket(0), protocol.OpSetPRN); err != nil {
		return t.fail(&TransferError{State: StateIdle, Err: err})
	}

	objects := []struct {
		kind protocol.ObjectType
		data []byte
	}{
		{protocol.ObjectCommand, t.initPacket},
		{protocol.ObjectData, t.firmware},
	}
	for _, obj := range objects {
		logger.Info(t.prefix, "sending %s object (%d bytes)", obj.kind, len(obj.data))
		if err := t.sendObject(ctx, b, obj.kind, obj.data); err != nil {
			return t.fail(err)
		}
	}

	t.setState(StateFinished)
	logger.Info(t.prefix, "transfer finished, %d objects executed", t.executed)
	return StateFinished, nil
}

func (t *Transfer) fail(err error) (TransferState, error) {
	t.setState(StateFailed)
	return StateFailed, err
}

func (t *Transfer) resolveChunkSize() int {
	size := 0
	if mp, ok := t.transport.(MTUProvider); ok {
		if mtu := mp.MTU(); mtu > protocol.ATTHeaderSize {
			size = mtu - protocol.ATTHeaderSize
		}
	}
	if c := t.config.ChunkSize; c > 0 && (size == 0 || c < size) {
		size = c
	}
	if size == 0 {
		size = DefaultChunkSize
	}
	return size
}

// sendObject runs the select/create/stream/checksum/execute procedure for
// one object type, splitting data objects larger than the device maximum.
func (t *Transfer) sendObject(ctx context.Context, b *Bridge, kind protocol.ObjectType, data []byte) error {
	s := &session{object: kind, data: data}
	state := StateSelecting
	for {
		if !state.Terminal() {
			t.setState(state)
		}
		var (
			next TransferState
			err  error
		)
		switch state {
		case StateSelecting:
			next, err = t.selectObject(ctx, b, s)
		case StateCreating:
			next, err = t.createObject(ctx, b, s)
		case StateStreaming:
			next, err = t.stream(s)
		case StateChecksumming:
			next, err = t.checksum(ctx, b, s)
		case StateExecuting:
			next, err = t.execute(ctx, b, s)
		case StateFinished:
			return nil
		case StateIdle, StateFailed:
			panic(fmt.Sprintf("dfu: unexpected object state %s", state))
		default:
			panic(fmt.Sprintf("dfu: unhandled transfer state %d", state))
		}
		if err != nil {
			return &TransferError{State: state, Object: kind, Offset: s.offset, Err: err}
		}
		state = next
	}
}

func (t *Transfer) selectObject(ctx context.Context, b *Bridge, s *session) (TransferState, error) {
	f, err := request(ctx, &t.endpoint, b, protocol.ControlPointCharUUID, protocol.SelectPacket(s.object), protocol.OpSelect)
	if err != nil {
		return StateFailed, err
	}
	sel, err := protocol.ParseSelectResponse(f.Payload)
	if err != nil {
		return StateFailed, classify(err)
	}
	logger.Debug(t.prefix, "select %s: max size %d, offset %d, crc 0x%08X", s.object, sel.MaxSize, sel.Offset, sel.CRC)

	if sel.MaxSize == 0 {
		return StateFailed, fmt.Errorf("%w: device reported zero max object size", ErrProtocolViolation)
	}
	s.maxSize = int(sel.MaxSize)
	if s.object == protocol.ObjectCommand && len(s.data) > s.maxSize {
		return StateFailed, fmt.Errorf("%w: init packet is %d bytes, device accepts %d", ErrObjectTooLarge, len(s.data), s.maxSize)
	}
	s.retriesLeft = t.config.ChecksumRetries

	off := int(sel.Offset)
	if off == 0 || off > len(s.data) || protocol.CRC32(s.data[:off]) != sel.CRC {
		if off != 0 {
			logger.Info(t.prefix, "device holds %d bytes of %s object that do not match, restarting", off, s.object)
		}
		s.start, s.offset, s.crc = 0, 0, 0
		return StateCreating, nil
	}

	s.start = (off - 1) / s.maxSize * s.maxSize
	s.end = min(s.start+s.maxSize, len(s.data))
	s.offset = off
	s.crc = sel.CRC
	s.confirmed = off
	s.sinceChecksum = 0
	t.report(s)

	if off == s.end {
		logger.Info(t.prefix, "resuming %s object: %d bytes already sent, executing", s.object, off)
		s.mayBeExecuted = true
		return StateExecuting, nil
	}
	logger.Info(t.prefix, "resuming %s object at offset %d", s.object, off)
	return StateStreaming, nil
}

func (t *Transfer) createObject(ctx context.Context, b *Bridge, s *session) (TransferState, error) {
	s.end = min(s.start+s.maxSize, len(s.data))
	size := s.end - s.start

	_, err := request(ctx, &t.endpoint, b, protocol.ControlPointCharUUID, protocol.CreatePacket(s.object, uint32(size)), protocol.OpCreate)
	if err != nil {
		if errors.Is(err, ErrDeviceRejected) {
			return StateFailed, fmt.Errorf("%w: %w", ErrCreateRejected, err)
		}
		return StateFailed, err
	}

	s.offset = s.start
	s.crc = protocol.CRC32(s.data[:s.start])
	s.confirmed = s.offset
	s.sinceChecksum = 0
	s.mayBeExecuted = false
	logger.Debug(t.prefix, "created %s object [%d, %d)", s.object, s.start, s.end)
	return StateStreaming, nil
}

// stream writes packets until the PRN window fills or the object ends.
func (t *Transfer) stream(s *session) (TransferState, error) {
	for s.offset < s.end {
		n := min(t.chunkSize, s.end-s.offset)
		chunk := s.data[s.offset : s.offset+n]
		if err := t.transport.WriteCommand(protocol.SecureDFUServiceUUID, protocol.PacketCharUUID, chunk); err != nil {
			return StateFailed, fmt.Errorf("%w: packet at offset %d: %w", ErrTransport, s.offset, err)
		}
		s.crc = protocol.UpdateCRC32(s.crc, chunk)
		s.offset += n
		s.sinceChecksum++
		t.report(s)

		if t.config.PRN > 0 && s.sinceChecksum >= t.config.PRN {
			break
		}
	}
	return StateChecksumming, nil
}

func (t *Transfer) checksum(ctx context.Context, b *Bridge, s *session) (TransferState, error) {
	s.sinceChecksum = 0
	f, err := request(ctx, &t.endpoint, b, protocol.ControlPointCharUUID, protocol.CalcChecksumPacket(), protocol.OpCalcChecksum)
	if err != nil {
		return StateFailed, err
	}
	res, err := protocol.ParseChecksumResponse(f.Payload)
	if err != nil {
		return StateFailed, classify(err)
	}

	if int(res.Offset) == s.offset && res.CRC == s.crc {
		s.confirmed = s.offset
		if s.offset == s.end {
			return StateExecuting, nil
		}
		return StateStreaming, nil
	}

	mismatch := &ChecksumMismatchError{
		Object:       s.object,
		LocalOffset:  uint32(s.offset),
		LocalCRC:     s.crc,
		DeviceOffset: res.Offset,
		DeviceCRC:    res.CRC,
	}
	short := int(res.Offset) < s.offset && int(res.Offset) >= s.confirmed
	if short && s.retriesLeft > 0 && protocol.CRC32(s.data[:res.Offset]) == res.CRC {
		s.retriesLeft--
		logger.Warn(t.prefix, "%v; resending from %d (%d retries left)", mismatch, res.Offset, s.retriesLeft)
		s.offset = int(res.Offset)
		s.crc = res.CRC
		s.confirmed = s.offset
		t.report(s)
		return StateStreaming, nil
	}
	return StateFailed, mismatch
}

func (t *Transfer) execute(ctx context.Context, b *Bridge, s *session) (TransferState, error) {
	_, err := request(ctx, &t.endpoint, b, protocol.ControlPointCharUUID, protocol.ExecutePacket(), protocol.OpExecute)
	switch {
	case err == nil:
	case s.mayBeExecuted && protocol.IsStatus(err, byte(protocol.ResultOperationNotPermitted)):
		logger.Debug(t.prefix, "%s object [%d, %d) was already executed", s.object, s.start, s.end)
	case errors.Is(err, ErrDeviceRejected):
		return StateFailed, fmt.Errorf("%w: %w", ErrExecuteRejected, err)
	default:
		return StateFailed, err
	}

	t.executed++
	s.mayBeExecuted = false
	t.report(s)
	if s.end >= len(s.data) {
		logger.Info(t.prefix, "%s object complete", s.object)
		return StateFinished, nil
	}
	s.start = s.end
	return StateCreating, nil
}

func (t *Transfer) report(s *session) {
	if t.config.Progress == nil {
		return
	}
	t.config.Progress(Progress{
		Object:   s.object,
		State:    t.State(),
		Sent:     s.offset,
		Total:    len(s.data),
		Executed: t.executed,
	})
}
