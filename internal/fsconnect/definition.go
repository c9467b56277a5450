// internal/fsconnect/definition.go
package fsconnect

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// Field is one simulation variable in a data definition.
// Fields are laid out in the record in the order they are listed.
type Field struct {
	Name     string
	Unit     string
	Type     DataType
	Instance uint // optional index qualifier, e.g. radio 1 or 2; 0 = none
}

// DatumName returns the host variable name including the instance suffix.
func (f Field) DatumName() string {
	if f.Instance == 0 {
		return f.Name
	}
	return f.Name + ":" + strconv.FormatUint(uint64(f.Instance), 10)
}

func (f Field) dataType() DataType {
	if f.Type == DataTypeInvalid {
		return DataTypeFloat64
	}
	return f.Type
}

// Definition is an explicit, ordered field list for one structured record.
type Definition struct {
	Name   string
	Fields []Field
}

// Size is the byte length of one record of this layout.
func (d Definition) Size() int {
	n := 0
	for _, f := range d.Fields {
		n += f.dataType().Size()
	}
	return n
}

func (d Definition) offset(i int) (int, DataType, error) {
	if i < 0 || i >= len(d.Fields) {
		return 0, DataTypeInvalid, fmt.Errorf("fsconnect: field index %d out of range (%d fields)", i, len(d.Fields))
	}
	off := 0
	for j := 0; j < i; j++ {
		off += d.Fields[j].dataType().Size()
	}
	return off, d.Fields[i].dataType(), nil
}

// Encode packs values into a record for UpdateData.
// Values must match the field types: int32/uint32 for INT32, int64 for INT64,
// float32 for FLOAT32, float64 for FLOAT64, string for STRINGn.
func (d Definition) Encode(values ...any) ([]byte, error) {
	if len(values) != len(d.Fields) {
		return nil, fmt.Errorf("fsconnect: definition %q has %d fields, got %d values", d.Name, len(d.Fields), len(values))
	}

	buf := make([]byte, d.Size())
	off := 0
	for i, f := range d.Fields {
		t := f.dataType()
		dst := buf[off : off+t.Size()]

		if err := putValue(dst, t, values[i]); err != nil {
			return nil, fmt.Errorf("fsconnect: field %s: %w", f.DatumName(), err)
		}
		off += t.Size()
	}
	return buf, nil
}

var errValueType = errors.New("value type does not match field type")

func putValue(dst []byte, t DataType, v any) error {
	switch t {
	case DataTypeInt32:
		switch x := v.(type) {
		case int32:
			binary.LittleEndian.PutUint32(dst, uint32(x))
		case uint32:
			binary.LittleEndian.PutUint32(dst, x)
		default:
			return errValueType
		}
	case DataTypeInt64:
		x, ok := v.(int64)
		if !ok {
			return errValueType
		}
		binary.LittleEndian.PutUint64(dst, uint64(x))
	case DataTypeFloat32:
		x, ok := v.(float32)
		if !ok {
			return errValueType
		}
		binary.LittleEndian.PutUint32(dst, math.Float32bits(x))
	case DataTypeFloat64:
		x, ok := v.(float64)
		if !ok {
			return errValueType
		}
		binary.LittleEndian.PutUint64(dst, math.Float64bits(x))
	default:
		x, ok := v.(string)
		if !ok || !t.isString() {
			return errValueType
		}
		// NUL padded; the last byte stays NUL.
		copy(dst[:len(dst)-1], x)
	}
	return nil
}

// Record is one data block received for a definition.
type Record struct {
	Definition Definition
	Raw        []byte
}

func (r Record) field(i int, want ...DataType) ([]byte, error) {
	off, t, err := r.Definition.offset(i)
	if err != nil {
		return nil, err
	}
	ok := false
	for _, w := range want {
		if t == w {
			ok = true
		}
	}
	if !ok {
		return nil, fmt.Errorf("fsconnect: field %d is %d: %w", i, t, errValueType)
	}
	end := off + t.Size()
	if end > len(r.Raw) {
		return nil, fmt.Errorf("fsconnect: record too short: field %d needs %d bytes, have %d", i, end, len(r.Raw))
	}
	return r.Raw[off:end], nil
}

// Uint32 reads an INT32 field as unsigned (BCD frequencies, flags).
func (r Record) Uint32(i int) (uint32, error) {
	b, err := r.field(i, DataTypeInt32)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// Int32 reads an INT32 field.
func (r Record) Int32(i int) (int32, error) {
	v, err := r.Uint32(i)
	return int32(v), err
}

// Int64 reads an INT64 field.
func (r Record) Int64(i int) (int64, error) {
	b, err := r.field(i, DataTypeInt64)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b)), nil
}

// Float32 reads a FLOAT32 field.
func (r Record) Float32(i int) (float32, error) {
	b, err := r.field(i, DataTypeFloat32)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(b)), nil
}

// Float64 reads a FLOAT64 field.
func (r Record) Float64(i int) (float64, error) {
	b, err := r.field(i, DataTypeFloat64)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
}

// String reads a STRINGn field up to its first NUL.
func (r Record) String(i int) (string, error) {
	b, err := r.field(i,
		DataTypeString8, DataTypeString32, DataTypeString64,
		DataTypeString128, DataTypeString256, DataTypeString260)
	if err != nil {
		return "", err
	}
	if n := bytes.IndexByte(b, 0); n >= 0 {
		b = b[:n]
	}
	return string(b), nil
}
