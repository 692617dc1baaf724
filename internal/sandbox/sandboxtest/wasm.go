// Package sandboxtest assembles tiny wasm bots for tests.
//
// Every module exports one page of memory as "memory", an allocation function
// returning a fixed pointer and a decision function whose body is supplied by
// the caller. Decision bodies see the ABI parameters as locals 0..4:
// board pointer, board edge, moves pointer, move count and player code.
package sandboxtest

const (
	DefaultAlloc  = "alloc_wasm_memory"
	DefaultDecide = "answer"

	// ScratchPointer is what the default allocation function returns.
	ScratchPointer = 1024
)

// Decision bodies.
var (
	// FirstMove returns the first offered legal move.
	FirstMove = []byte{0x20, 0x02, 0x2d, 0x00, 0x00}
	// LastMove returns the last offered legal move.
	LastMove = []byte{0x20, 0x02, 0x20, 0x03, 0x6a, 0x41, 0x01, 0x6b, 0x2d, 0x00, 0x00}
	// Trap executes unreachable.
	Trap = []byte{0x00}
	// OutOfBounds loads from the last addressable byte of a 4GiB space.
	OutOfBounds = []byte{0x41, 0x7f, 0x2d, 0x00, 0x00}
	// Spin never returns.
	Spin = []byte{0x03, 0x40, 0x0c, 0x00, 0x0b, 0x00}
	// PlayerCode echoes the mover's wire code.
	PlayerCode = []byte{0x20, 0x04}
)

// BoardByte returns a decision body that answers the board cell at index.
func BoardByte(index uint32) []byte {
	return append([]byte{0x20, 0x00, 0x2d, 0x00}, uleb(index)...)
}

// Constant returns a decision body that always answers v.
func Constant(v int32) []byte {
	return append([]byte{0x41}, sleb(v)...)
}

// Module describes a bot binary.
type Module struct {
	AllocName  string
	DecideName string
	AllocPtr   int32
	Decide     []byte
	// ImportHost adds an import of env.host, which no sandbox provides.
	ImportHost bool
}

// Bot builds a module with the default export names around a decision body.
func Bot(decide []byte) []byte {
	return Module{
		AllocName:  DefaultAlloc,
		DecideName: DefaultDecide,
		AllocPtr:   ScratchPointer,
		Decide:     decide,
	}.Bytes()
}

// Bytes encodes the module in the wasm binary format.
func (m Module) Bytes() []byte {
	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	// type 0: (i32) -> i32, type 1: (i32 x5) -> i32
	types := []byte{0x02,
		0x60, 0x01, 0x7f, 0x01, 0x7f,
		0x60, 0x05, 0x7f, 0x7f, 0x7f, 0x7f, 0x7f, 0x01, 0x7f,
	}
	out = append(out, section(1, types)...)

	var base uint32
	if m.ImportHost {
		imports := []byte{0x01}
		imports = append(imports, name("env")...)
		imports = append(imports, name("host")...)
		imports = append(imports, 0x00, 0x00)
		out = append(out, section(2, imports)...)
		base = 1
	}

	out = append(out, section(3, []byte{0x02, 0x00, 0x01})...)
	out = append(out, section(5, []byte{0x01, 0x00, 0x01})...)

	var exports [][]byte
	exports = append(exports, export("memory", 0x02, 0))
	if m.AllocName != "" {
		exports = append(exports, export(m.AllocName, 0x00, base))
	}
	if m.DecideName != "" {
		exports = append(exports, export(m.DecideName, 0x00, base+1))
	}
	exportSection := uleb(uint32(len(exports)))
	for _, e := range exports {
		exportSection = append(exportSection, e...)
	}
	out = append(out, section(7, exportSection)...)

	code := []byte{0x02}
	code = append(code, body(Constant(m.AllocPtr))...)
	code = append(code, body(m.Decide)...)
	out = append(out, section(10, code)...)

	return out
}

func body(instructions []byte) []byte {
	fn := append([]byte{0x00}, instructions...)
	fn = append(fn, 0x0b)

	return append(uleb(uint32(len(fn))), fn...)
}

func export(n string, kind byte, index uint32) []byte {
	out := name(n)
	out = append(out, kind)

	return append(out, uleb(index)...)
}

func section(id byte, content []byte) []byte {
	out := []byte{id}
	out = append(out, uleb(uint32(len(content)))...)

	return append(out, content...)
}

func name(s string) []byte {
	return append(uleb(uint32(len(s))), s...)
}

func uleb(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

func sleb(v int32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}
