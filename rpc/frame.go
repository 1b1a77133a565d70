package rpc

import (
	"encoding/binary"
	"io"

	"golang.org/x/xerrors"
)

// Message kinds, the wire-level RPC vocabulary of spec §4.2/§6. Replies
// carry the same kind with replyFlag set; kindError is reserved for
// {code, message} error replies.
const (
	KindPing             byte = 1
	KindFindSuccessor    byte = 2
	KindGetPredecessor   byte = 3
	KindGetSuccessorList byte = 4
	KindNotify           byte = 5
	KindPut              byte = 6
	KindGet              byte = 7
	KindTransferRange    byte = 8
	KindSubmitJob        byte = 9
	KindJobStatus        byte = 10
	KindListJobs         byte = 11

	replyFlag byte = 0x80
	kindError byte = 0xFF
)

// maxFrameSize bounds a single frame so a corrupt or hostile length prefix
// can't make the reader allocate unbounded memory.
const maxFrameSize = 16 << 20

// frame is the decoded wire message: a correlation id, a kind byte, and an
// opaque body. Requests and replies share this shape; a reply's kind has
// replyFlag set (or equals kindError on failure).
type frame struct {
	correlationID uint64
	kind          byte
	body          []byte
}

// writeFrame encodes fr as a 4-byte big-endian length prefix followed by
// {correlation_id: u64, kind: u8, body: bytes}, per spec §6.
func writeFrame(w io.Writer, fr frame) error {
	payload := make([]byte, 8+1+len(fr.body))
	binary.BigEndian.PutUint64(payload[0:8], fr.correlationID)
	payload[8] = fr.kind
	copy(payload[9:], fr.body)

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))

	if _, err := w.Write(lenBuf[:]); err != nil {
		return xerrors.Errorf("rpc: write length prefix: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return xerrors.Errorf("rpc: write payload: %w", err)
	}
	return nil
}

// readFrame decodes one frame from r, blocking until a full frame arrives
// or the underlying reader errors (for example because the connection was
// closed).
func readFrame(r io.Reader) (frame, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return frame{}, err
	}
	length := binary.BigEndian.Uint32(lenBuf[:])
	if length < 9 || length > maxFrameSize {
		return frame{}, xerrors.Errorf("%w: length %d out of range", ErrFrameCorrupt, length)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return frame{}, xerrors.Errorf("rpc: read payload: %w", err)
	}

	return frame{
		correlationID: binary.BigEndian.Uint64(payload[0:8]),
		kind:          payload[8],
		body:          payload[9:],
	}, nil
}

func isReply(kind byte) bool {
	return kind&replyFlag != 0 || kind == kindError
}

func replyKind(requestKind byte) byte {
	return requestKind | replyFlag
}

func baseKind(kind byte) byte {
	return kind &^ replyFlag
}
