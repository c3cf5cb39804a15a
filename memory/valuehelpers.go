package memory

import (
	"encoding/binary"
	"unsafe"

	"github.com/embervale/machina/component"
	"github.com/embervale/machina/emuerrors"
)

// Unsigned constrains the value helpers to the unsigned integer widths a
// bus access can plausibly carry: a single byte, or a multi-byte value
// assembled from consecutive bus addresses.
type Unsigned interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

// ReadLEValue reads size_of(T) consecutive bytes from addr in a single
// MemoryAccessTable.Read, interprets them as little-endian, and returns
// the result as T. It is sugar over the buffer-based Read: mapping,
// mirrors, component redirects and width masking all apply exactly as
// they would to any other buffer access.
func ReadLEValue[T Unsigned](t *MemoryAccessTable, id component.AddressSpaceId, addr uint32) (T, error) {
	buf, err := readBytes[T](t, id, addr)
	if err != nil {
		return 0, err
	}
	return decodeLE[T](buf), nil
}

// ReadBEValue is ReadLEValue, interpreting the bytes as big-endian.
func ReadBEValue[T Unsigned](t *MemoryAccessTable, id component.AddressSpaceId, addr uint32) (T, error) {
	buf, err := readBytes[T](t, id, addr)
	if err != nil {
		return 0, err
	}
	return decodeBE[T](buf), nil
}

// WriteLEValue writes value across size_of(T) consecutive bytes starting
// at addr, in little-endian order, via a single MemoryAccessTable.Write.
func WriteLEValue[T Unsigned](t *MemoryAccessTable, id component.AddressSpaceId, addr uint32, value T) error {
	return t.Write(id, addr, encodeLE(value))
}

// WriteBEValue is WriteLEValue, in big-endian order.
func WriteBEValue[T Unsigned](t *MemoryAccessTable, id component.AddressSpaceId, addr uint32, value T) error {
	return t.Write(id, addr, encodeBE(value))
}

func readBytes[T Unsigned](t *MemoryAccessTable, id component.AddressSpaceId, addr uint32) ([]byte, error) {
	var zero T
	buf := make([]byte, unsafe.Sizeof(zero))
	if err := t.Read(id, addr, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func decodeLE[T Unsigned](buf []byte) T {
	switch len(buf) {
	case 1:
		return T(buf[0])
	case 2:
		return T(binary.LittleEndian.Uint16(buf))
	case 4:
		return T(binary.LittleEndian.Uint32(buf))
	case 8:
		return T(binary.LittleEndian.Uint64(buf))
	default:
		panic(emuerrors.Errorf(emuerrors.InvalidConfig, "unsupported value width"))
	}
}

func decodeBE[T Unsigned](buf []byte) T {
	switch len(buf) {
	case 1:
		return T(buf[0])
	case 2:
		return T(binary.BigEndian.Uint16(buf))
	case 4:
		return T(binary.BigEndian.Uint32(buf))
	case 8:
		return T(binary.BigEndian.Uint64(buf))
	default:
		panic(emuerrors.Errorf(emuerrors.InvalidConfig, "unsupported value width"))
	}
}

func encodeLE[T Unsigned](value T) []byte {
	switch any(value).(type) {
	case uint8:
		return []byte{byte(value)}
	case uint16:
		buf := make([]byte, 2)
		binary.LittleEndian.PutUint16(buf, uint16(value))
		return buf
	case uint32:
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(value))
		return buf
	case uint64:
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, uint64(value))
		return buf
	default:
		panic(emuerrors.Errorf(emuerrors.InvalidConfig, "unsupported value width"))
	}
}

func encodeBE[T Unsigned](value T) []byte {
	switch any(value).(type) {
	case uint8:
		return []byte{byte(value)}
	case uint16:
		buf := make([]byte, 2)
		binary.BigEndian.PutUint16(buf, uint16(value))
		return buf
	case uint32:
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, uint32(value))
		return buf
	case uint64:
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(value))
		return buf
	default:
		panic(emuerrors.Errorf(emuerrors.InvalidConfig, "unsupported value width"))
	}
}
