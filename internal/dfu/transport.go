package dfu

// Transport is what the engines need from a BLE link. Service and
// characteristic identifiers are canonical UUID strings. Both writes are
// fire-and-forget from the engine's point of view; responses arrive through
// the engine's Notify or Indicate entry point.
type Transport interface {
	// WriteCommand writes without response (packet characteristic)
	WriteCommand(service, char string, data []byte) error

	// WriteRequest writes with response (control point, buttonless)
	WriteRequest(service, char string, data []byte) error
}

// MTUProvider is implemented by transports that know the negotiated ATT MTU.
type MTUProvider interface {
	MTU() int
}

// Handler receives inbound notifications and indications.
type Handler func(service, char string, data []byte)
