package packet

const (
	IDLogin uint32 = iota + 0x01
	IDPlayStatus
	IDServerToClientHandshake
	IDClientToServerHandshake
	IDDisconnect
)

const (
	IDNetworkSettings        uint32 = 0x8f
	IDRequestNetworkSettings uint32 = 0xc1
)
