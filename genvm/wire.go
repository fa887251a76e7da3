package genvm

import (
	"encoding/binary"
	"io"
	"net"

	"github.com/ethereum/go-ethereum/common"
)

// Wire framing between the host and the engine. All integers are unsigned
// little-endian; the default width is 32 bits. Byte strings are a u32 length
// followed by the raw bytes. Addresses and storage slots travel as raw
// fixed-width blobs (20 and 32 bytes).

type methodID byte

const (
	methodAppendCalldata methodID = iota
	methodGetCode
	methodStorageRead
	methodStorageWrite
	methodConsumeResult
	methodGetLeaderNondetResult
	methodPostNondetResult
	methodPostMessage
)

func (m methodID) String() string {
	switch m {
	case methodAppendCalldata:
		return "APPEND_CALLDATA"
	case methodGetCode:
		return "GET_CODE"
	case methodStorageRead:
		return "STORAGE_READ"
	case methodStorageWrite:
		return "STORAGE_WRITE"
	case methodConsumeResult:
		return "CONSUME_RESULT"
	case methodGetLeaderNondetResult:
		return "GET_LEADER_NONDET_RESULT"
	case methodPostNondetResult:
		return "POST_NONDET_RESULT"
	case methodPostMessage:
		return "POST_MESSAGE"
	}
	return "UNKNOWN"
}

// ResultCode tags both the engine's final result and per-call
// nondeterministic results on the wire.
type ResultCode byte

const (
	ResultNone ResultCode = iota
	ResultReturn
	ResultRollback
)

func (r ResultCode) String() string {
	switch r {
	case ResultNone:
		return "NONE"
	case ResultReturn:
		return "RETURN"
	case ResultRollback:
		return "ROLLBACK"
	}
	return "UNKNOWN"
}

// valid reports whether r is one of the codes the engine may legally emit.
func (r ResultCode) valid() bool {
	return r <= ResultRollback
}

// wireConn layers the framing primitives over the accepted stream. Reads
// loop until the requested byte count arrives; a stream that ends first
// surfaces as io.EOF (nothing of the field read) or io.ErrUnexpectedEOF
// (part of it read), and the loop returns that error unchanged.
type wireConn struct {
	conn net.Conn
}

func (w *wireConn) readExact(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(w.conn, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (w *wireConn) readByte() (byte, error) {
	b, err := w.readExact(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (w *wireConn) readUint32() (uint32, error) {
	b, err := w.readExact(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (w *wireConn) readUint64() (uint64, error) {
	b, err := w.readExact(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// readBytes reads a u32 length prefix followed by that many raw bytes.
func (w *wireConn) readBytes() ([]byte, error) {
	n, err := w.readUint32()
	if err != nil {
		return nil, err
	}
	return w.readExact(int(n))
}

func (w *wireConn) readAddress() (common.Address, error) {
	b, err := w.readExact(common.AddressLength)
	if err != nil {
		return common.Address{}, err
	}
	return common.BytesToAddress(b), nil
}

func (w *wireConn) readSlot() (common.Hash, error) {
	b, err := w.readExact(common.HashLength)
	if err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(b), nil
}

// sendAll writes the whole buffer; net.Conn.Write already loops on short
// writes for stream sockets.
func (w *wireConn) sendAll(b []byte) error {
	_, err := w.conn.Write(b)
	return err
}

func (w *wireConn) writeByte(b byte) error {
	return w.sendAll([]byte{b})
}

func (w *wireConn) writeUint32(v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return w.sendAll(b[:])
}

func (w *wireConn) writeUint64(v uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return w.sendAll(b[:])
}

// writeBytes sends a u32 length prefix followed by the raw bytes.
func (w *wireConn) writeBytes(b []byte) error {
	if err := w.writeUint32(uint32(len(b))); err != nil {
		return err
	}
	return w.sendAll(b)
}
