package interpreter

type valueType uint8

const (
	typeNull valueType = iota
	typeBool
	typeNum
)

func (v valueType) String() string {
	switch v {
	case typeBool:
		return "bool"
	case typeNum:
		return "number"
	default:
		return "null"
	}
}

// A generic value (these are passed around by value)
type value struct {
	typ valueType
	b   bool
	n   float64
}

func num(n float64) value {
	return value{typ: typeNum, n: n}
}

func boolean(b bool) value {
	return value{typ: typeBool, b: b}
}
