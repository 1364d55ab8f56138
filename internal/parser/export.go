package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rislab/flight-review/internal/models"
	"github.com/vmihailenco/msgpack/v5"
)

// MsgpackDecoder reads msgpack recording exports.
type MsgpackDecoder struct{}

func NewMsgpackDecoder() *MsgpackDecoder {
	return &MsgpackDecoder{}
}

func (d *MsgpackDecoder) Name() string {
	return "msgpack"
}

// CanDecode accepts .frec and .msgpack files, or any file starting with a
// msgpack map header.
func (d *MsgpackDecoder) CanDecode(name string, head []byte) bool {
	if hasExt(name, ".frec", ".msgpack") {
		return true
	}
	if len(head) == 0 {
		return false
	}
	b := head[0]
	return (b >= 0x80 && b <= 0x8f) || b == 0xde || b == 0xdf
}

func (d *MsgpackDecoder) Decode(r io.Reader) (*models.LogRecording, error) {
	var rec models.LogRecording
	if err := msgpack.NewDecoder(r).Decode(&rec); err != nil {
		return nil, fmt.Errorf("decoding recording: %w", err)
	}
	return &rec, nil
}

// EncodeMsgpack writes rec in the format MsgpackDecoder reads.
func EncodeMsgpack(w io.Writer, rec *models.LogRecording) error {
	return msgpack.NewEncoder(w).Encode(rec)
}

// JSONDecoder reads JSON recording exports.
type JSONDecoder struct{}

func NewJSONDecoder() *JSONDecoder {
	return &JSONDecoder{}
}

func (d *JSONDecoder) Name() string {
	return "json"
}

func (d *JSONDecoder) CanDecode(name string, head []byte) bool {
	if hasExt(name, ".json") {
		return true
	}
	trimmed := bytes.TrimLeft(head, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func (d *JSONDecoder) Decode(r io.Reader) (*models.LogRecording, error) {
	var rec models.LogRecording
	if err := json.NewDecoder(r).Decode(&rec); err != nil {
		return nil, fmt.Errorf("decoding recording: %w", err)
	}
	return &rec, nil
}
