package packet

// Client → login server opcodes.
const (
	C_OPCODE_AUTH_LOGIN   byte = 0x00
	C_OPCODE_REQUEST_PLAY byte = 0x02
	C_OPCODE_SERVER_LIST  byte = 0x05
	C_OPCODE_QUIT         byte = 0x0e
)

// Login server → client opcodes.
const (
	S_OPCODE_INIT        byte = 0x00
	S_OPCODE_LOGIN_FAIL  byte = 0x01
	S_OPCODE_ACCOUNT_KIC byte = 0x02 // duplicate-session / reaper kick notice
	S_OPCODE_LOGIN_OK    byte = 0x03
	S_OPCODE_SERVER_LIST byte = 0x04
	S_OPCODE_PLAY_FAIL   byte = 0x06
	S_OPCODE_PLAY_OK     byte = 0x07
)

// Game-server link opcodes (both directions, plaintext internal transport).
const (
	GS_OPCODE_AUTH_REQUEST     byte = 0x01 // GS → LS: server id + shared key
	GS_OPCODE_AUTH_RESPONSE    byte = 0x02 // LS → GS
	GS_OPCODE_PLAYERS_IN_GAME  byte = 0x03 // GS → LS: full online-account set
	GS_OPCODE_PLAYER_IN        byte = 0x04 // GS → LS: one account entered
	GS_OPCODE_PLAYER_OUT       byte = 0x05 // GS → LS: one account left
	GS_OPCODE_PLAYER_AUTH_REQ  byte = 0x06 // GS → LS: validate session key
	GS_OPCODE_PLAYER_AUTH_RESP byte = 0x07 // LS → GS
	GS_OPCODE_STATUS           byte = 0x08 // GS → LS: player count / capacity
)

// InitProtocolRevision identifies the handshake layout in the init packet.
const InitProtocolRevision int32 = 0x0102
