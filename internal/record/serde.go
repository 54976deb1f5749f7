package record

import (
	"encoding/binary"
	"math"

	"learndb/internal/dberr"
)

// Value is one column's in-memory value: nil (NULL), int32 (INTEGER),
// float32 (REAL), bool (BOOL), or string (TEXT).
type Value interface{}

// serial type codes, per the canonical table: NULL=0, INTEGER=1, REAL=2,
// BOOL=3, TEXT=4+len.
const (
	serialNull    = 0
	serialInteger = 1
	serialReal    = 2
	serialBool    = 3
	serialTextMin = 4
)

// CellHeaderSize is the fixed [key:4|value_size:4] prefix of every cell.
const CellHeaderSize = 8

func serialTypeOf(col Column, v Value) (uint64, error) {
	if v == nil {
		if col.NotNull {
			return 0, dberr.ErrSchemaMismatch
		}
		return serialNull, nil
	}
	switch col.Type {
	case TypeInteger:
		if _, ok := v.(int32); !ok {
			return 0, dberr.ErrSchemaMismatch
		}
		return serialInteger, nil
	case TypeReal:
		if _, ok := v.(float32); !ok {
			return 0, dberr.ErrSchemaMismatch
		}
		return serialReal, nil
	case TypeBool:
		if _, ok := v.(bool); !ok {
			return 0, dberr.ErrSchemaMismatch
		}
		return serialBool, nil
	case TypeText:
		s, ok := v.(string)
		if !ok {
			return 0, dberr.ErrSchemaMismatch
		}
		return uint64(serialTextMin + len(s)), nil
	default:
		return 0, dberr.ErrSchemaMismatch
	}
}

// EncodeRecord serializes values (in schema.BodyColumns() order) into the
// [header_size|serial_types...|body] record format. maxCellSize bounds
// the total cell size (CellHeaderSize + len(record)); records that would
// exceed it are rejected with ErrTooLarge and a nil record.
func EncodeRecord(schema Schema, values []Value, maxCellSize int) ([]byte, error) {
	cols := schema.BodyColumns()
	if len(values) != len(cols) {
		return nil, dberr.ErrSchemaMismatch
	}

	header := make([]byte, 0, len(cols)*2)
	body := make([]byte, 0, 64)
	varintBuf := make([]byte, binary.MaxVarintLen64)

	for i, col := range cols {
		code, err := serialTypeOf(col, values[i])
		if err != nil {
			return nil, err
		}
		n := binary.PutUvarint(varintBuf, code)
		header = append(header, varintBuf[:n]...)
		body = append(body, encodeValueBody(col, values[i])...)
	}

	record := make([]byte, 0, 4+len(header)+len(body))
	sizeBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(sizeBuf, uint32(len(header)))
	record = append(record, sizeBuf...)
	record = append(record, header...)
	record = append(record, body...)

	if CellHeaderSize+len(record) > maxCellSize {
		return nil, dberr.ErrTooLarge
	}
	return record, nil
}

func encodeValueBody(col Column, v Value) []byte {
	if v == nil {
		return nil
	}
	switch col.Type {
	case TypeInteger:
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(v.(int32)))
		return buf
	case TypeReal:
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, math.Float32bits(v.(float32)))
		return buf
	case TypeBool:
		if v.(bool) {
			return []byte{1}
		}
		return []byte{0}
	case TypeText:
		return []byte(v.(string))
	default:
		return nil
	}
}

// DecodeRecord parses a record previously produced by EncodeRecord,
// returning values in schema.BodyColumns() order.
func DecodeRecord(schema Schema, data []byte) ([]Value, error) {
	if len(data) < 4 {
		return nil, dberr.ErrSchemaMismatch
	}
	headerSize := binary.LittleEndian.Uint32(data[0:4])
	if uint32(len(data)) < 4+headerSize {
		return nil, dberr.ErrSchemaMismatch
	}
	header := data[4 : 4+headerSize]
	body := data[4+headerSize:]

	cols := schema.BodyColumns()
	codes := make([]uint64, 0, len(cols))
	off := 0
	for off < len(header) {
		code, n := binary.Uvarint(header[off:])
		if n <= 0 {
			return nil, dberr.ErrSchemaMismatch
		}
		codes = append(codes, code)
		off += n
	}
	if len(codes) != len(cols) {
		return nil, dberr.ErrSchemaMismatch
	}

	values := make([]Value, len(cols))
	bodyOff := 0
	for i, col := range cols {
		v, n, err := decodeValueBody(col, codes[i], body[bodyOff:])
		if err != nil {
			return nil, err
		}
		values[i] = v
		bodyOff += n
	}
	return values, nil
}

func decodeValueBody(col Column, code uint64, body []byte) (Value, int, error) {
	switch {
	case code == serialNull:
		if col.NotNull {
			return nil, 0, dberr.ErrSchemaMismatch
		}
		return nil, 0, nil
	case code == serialInteger:
		if col.Type != TypeInteger || len(body) < 4 {
			return nil, 0, dberr.ErrSchemaMismatch
		}
		return int32(binary.LittleEndian.Uint32(body[0:4])), 4, nil
	case code == serialReal:
		if col.Type != TypeReal || len(body) < 4 {
			return nil, 0, dberr.ErrSchemaMismatch
		}
		return math.Float32frombits(binary.LittleEndian.Uint32(body[0:4])), 4, nil
	case code == serialBool:
		if col.Type != TypeBool || len(body) < 1 {
			return nil, 0, dberr.ErrSchemaMismatch
		}
		return body[0] != 0, 1, nil
	case code >= serialTextMin:
		if col.Type != TypeText {
			return nil, 0, dberr.ErrSchemaMismatch
		}
		n := int(code - serialTextMin)
		if len(body) < n {
			return nil, 0, dberr.ErrSchemaMismatch
		}
		return string(body[:n]), n, nil
	default:
		return nil, 0, dberr.ErrSchemaMismatch
	}
}

// EncodeCell packs key and a pre-encoded record into the on-disk cell
// format: [key:4 | value_size:4 | record_bytes].
func EncodeCell(key int32, recordBytes []byte) []byte {
	cell := make([]byte, CellHeaderSize+len(recordBytes))
	binary.LittleEndian.PutUint32(cell[0:4], uint32(key))
	binary.LittleEndian.PutUint32(cell[4:8], uint32(len(recordBytes)))
	copy(cell[8:], recordBytes)
	return cell
}

// CellKey reads a cell's key without touching its record.
func CellKey(cell []byte) int32 {
	return int32(binary.LittleEndian.Uint32(cell[0:4]))
}

// CellValueSize reads a cell's record length.
func CellValueSize(cell []byte) uint32 {
	return binary.LittleEndian.Uint32(cell[4:8])
}

// CellSize returns the total byte length of a cell, header included.
func CellSize(cell []byte) int {
	return CellHeaderSize + int(CellValueSize(cell))
}

// CellRecord returns the record-bytes slice of a cell.
func CellRecord(cell []byte) []byte {
	n := CellValueSize(cell)
	return cell[CellHeaderSize : CellHeaderSize+n]
}
