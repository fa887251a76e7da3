package genvm

import (
	"net"
)

// hostLoop services engine requests on the accepted socket until the engine
// posts its terminal CONSUME_RESULT. Exactly the bytes each method frame
// prescribes are consumed; anything else — unknown tags, short reads, state
// proxy failures — terminates the loop with an error.
func hostLoop(conn net.Conn, h hostHandler) error {
	w := &wireConn{conn: conn}
	for {
		tag, err := w.readByte()
		if err != nil {
			return err
		}
		meth := methodID(tag)
		switch meth {
		case methodAppendCalldata:
			cd, err := h.GetCalldata()
			if err != nil {
				return err
			}
			if err := w.writeBytes(cd); err != nil {
				return err
			}

		case methodGetCode:
			addr, err := w.readAddress()
			if err != nil {
				return err
			}
			code, err := h.GetCode(addr)
			if err != nil {
				return err
			}
			if err := w.writeBytes(code); err != nil {
				return err
			}

		case methodStorageRead:
			gasBefore, err := w.readUint64()
			if err != nil {
				return err
			}
			account, err := w.readAddress()
			if err != nil {
				return err
			}
			slot, err := w.readSlot()
			if err != nil {
				return err
			}
			index, err := w.readUint32()
			if err != nil {
				return err
			}
			le, err := w.readUint32()
			if err != nil {
				return err
			}
			res, gas, err := h.StorageRead(gasBefore, account, slot, index, le)
			if err != nil {
				return err
			}
			if uint32(len(res)) != le {
				return protocolErrorf("storage read returned %d bytes, want %d", len(res), le)
			}
			if err := w.writeUint64(gas); err != nil {
				return err
			}
			if err := w.sendAll(res); err != nil {
				return err
			}

		case methodStorageWrite:
			gasBefore, err := w.readUint64()
			if err != nil {
				return err
			}
			account, err := w.readAddress()
			if err != nil {
				return err
			}
			slot, err := w.readSlot()
			if err != nil {
				return err
			}
			index, err := w.readUint32()
			if err != nil {
				return err
			}
			got, err := w.readBytes()
			if err != nil {
				return err
			}
			gas, err := h.StorageWrite(gasBefore, account, slot, index, got)
			if err != nil {
				return err
			}
			if err := w.writeUint64(gas); err != nil {
				return err
			}

		case methodConsumeResult:
			code, data, err := readResult(w)
			if err != nil {
				return err
			}
			return h.ConsumeResult(code, data)

		case methodGetLeaderNondetResult:
			callNo, err := w.readUint32()
			if err != nil {
				return err
			}
			code, payload, err := h.GetLeaderNondetResult(callNo)
			if err != nil {
				return err
			}
			if err := w.writeByte(byte(code)); err != nil {
				return err
			}
			if code == ResultNone {
				break
			}
			if err := w.writeBytes(payload); err != nil {
				return err
			}

		case methodPostNondetResult:
			callNo, err := w.readUint32()
			if err != nil {
				return err
			}
			code, data, err := readResult(w)
			if err != nil {
				return err
			}
			if err := h.PostNondetResult(callNo, code, data); err != nil {
				return err
			}

		case methodPostMessage:
			account, err := w.readAddress()
			if err != nil {
				return err
			}
			gas, err := w.readUint64()
			if err != nil {
				return err
			}
			calldata, err := w.readBytes()
			if err != nil {
				return err
			}
			code, err := w.readBytes()
			if err != nil {
				return err
			}
			if err := h.PostMessage(account, gas, calldata, code); err != nil {
				return err
			}

		default:
			return protocolErrorf("unknown method %d", tag)
		}
	}
}

// readResult reads the {code, u32 length, payload} triple shared by
// CONSUME_RESULT and POST_NONDET_RESULT.
func readResult(w *wireConn) (ResultCode, []byte, error) {
	b, err := w.readByte()
	if err != nil {
		return 0, nil, err
	}
	code := ResultCode(b)
	if !code.valid() {
		return 0, nil, protocolErrorf("unknown result code %d", b)
	}
	data, err := w.readBytes()
	if err != nil {
		return 0, nil, err
	}
	return code, data, nil
}
