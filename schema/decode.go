package schema

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

type DecodeErrorKind int

const (
	DecodeBitRange DecodeErrorKind = iota + 1
	DecodeUnsupportedFormat
	DecodeUtf8
	DecodeNotImplemented
)

// DecodeError is scoped to one parameter. A failing parameter does
// not stop the surrounding service decode.
type DecodeError struct {
	Kind  DecodeErrorKind
	Param string
	Err   error
}

func (e *DecodeError) Error() string {
	var desc string
	switch e.Kind {
	case DecodeBitRange:
		desc = "bit range outside response"
	case DecodeUnsupportedFormat:
		desc = "format cannot be decoded this way"
	case DecodeUtf8:
		desc = "string bytes are not valid for the declared encoding"
	case DecodeNotImplemented:
		desc = "format not implemented"
	default:
		desc = "decode error"
	}
	if e.Err != nil {
		return fmt.Sprintf("%v : %v : %v", e.Param, desc, e.Err)
	}
	return fmt.Sprintf("%v : %v", e.Param, desc)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Value is one decoded output parameter
type Value struct {
	Name     string
	Display  string
	Number   float64
	Numeric  bool
	Unit     string
	RawBytes []byte
}

// extractBits reads length bits starting at the given bit position,
// MSB first within each byte. Groups of up to 8 bits are assembled
// with the declared byte order.
func extractBits(data []byte, start int, length int, order ByteOrder) (uint64, error) {
	if length <= 0 || length > 64 || start < 0 || start+length > len(data)*8 {
		return 0, fmt.Errorf("bits [%v:+%v] of %v byte response", start, length, len(data))
	}
	readGroup := func(pos int, n int) uint64 {
		var v uint64
		for i := 0; i < n; i++ {
			bit := pos + i
			mask := byte(0x80) >> uint(bit%8)
			v <<= 1
			if data[bit/8]&mask != 0 {
				v |= 1
			}
		}
		return v
	}
	if length <= 8 {
		return readGroup(start, length), nil
	}
	var groups []uint64
	var widths []int
	for pos := start; pos < start+length; pos += 8 {
		n := 8
		if start+length-pos < 8 {
			n = start + length - pos
		}
		groups = append(groups, readGroup(pos, n))
		widths = append(widths, n)
	}
	var res uint64
	if order == LittleEndian {
		shift := 0
		for i, g := range groups {
			res |= g << uint(shift)
			shift += widths[i]
		}
	} else {
		for i, g := range groups {
			res = res<<uint(widths[i]) | g
		}
	}
	return res, nil
}

func (p *Parameter) rawNumber(resp []byte) (uint64, *DecodeError) {
	v, err := extractBits(resp, p.StartBit, p.LengthBits, p.ByteOrder)
	if err != nil {
		return 0, &DecodeError{Kind: DecodeBitRange, Param: p.Name, Err: err}
	}
	return v, nil
}

func (p *Parameter) rawSlice(resp []byte) ([]byte, *DecodeError) {
	start := p.StartBit / 8
	end := (p.StartBit + p.LengthBits + 7) / 8
	if start < 0 || end > len(resp) || start > end {
		return nil, &DecodeError{Kind: DecodeBitRange, Param: p.Name,
			Err: fmt.Errorf("bytes [%v:%v] of %v byte response", start, end, len(resp))}
	}
	return resp[start:end], nil
}

// Number decodes the parameter as a float. Only numeric formats
// support this, everything else reports DecodeUnsupportedFormat.
func (p *Parameter) Number(resp []byte) (float64, *DecodeError) {
	switch p.Format.Kind {
	case FormatRawInt, FormatRawFloat, FormatIdentical, FormatBool:
		raw, err := p.rawNumber(resp)
		if err != nil {
			return 0, err
		}
		return float64(raw), nil
	case FormatLinear:
		raw, err := p.rawNumber(resp)
		if err != nil {
			return 0, err
		}
		return float64(raw)*p.Format.Multiplier + p.Format.Offset, nil
	default:
		return 0, &DecodeError{Kind: DecodeUnsupportedFormat, Param: p.Name}
	}
}

// CanPlot reports whether the parameter produces plottable numbers
func (p *Parameter) CanPlot() bool {
	switch p.Format.Kind {
	case FormatRawInt, FormatRawFloat, FormatIdentical, FormatLinear, FormatBool:
		return true
	default:
		return false
	}
}

// DisplayString renders the parameter for humans, unit attached for
// numeric formats
func (p *Parameter) DisplayString(resp []byte) (string, *DecodeError) {
	var res string
	switch p.Format.Kind {
	case FormatRawInt, FormatIdentical:
		raw, err := p.rawNumber(resp)
		if err != nil {
			return "", err
		}
		res = fmt.Sprintf("%v", raw)
	case FormatRawFloat, FormatLinear:
		num, err := p.Number(resp)
		if err != nil {
			return "", err
		}
		res = trimFloat(num)
	case FormatBool:
		raw, err := p.rawNumber(resp)
		if err != nil {
			return "", err
		}
		if raw == 0 {
			return fallback(p.Format.NegName, "False"), nil
		}
		return fallback(p.Format.PosName, "True"), nil
	case FormatTable:
		raw, err := p.rawNumber(resp)
		if err != nil {
			return "", err
		}
		v := float64(raw)
		for _, row := range p.Format.Rows {
			if row.Start <= v && v <= row.End {
				return row.Name, nil
			}
		}
		return fmt.Sprintf("Undefined(%v)", raw), nil
	case FormatBinary:
		raw, err := p.rawNumber(resp)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("0b%0*b", p.LengthBits, raw), nil
	case FormatHexDump:
		slice, err := p.rawSlice(resp)
		if err != nil {
			return "", err
		}
		parts := make([]string, len(slice))
		for i, b := range slice {
			parts[i] = fmt.Sprintf("%02X", b)
		}
		return strings.Join(parts, " "), nil
	case FormatString:
		slice, err := p.rawSlice(resp)
		if err != nil {
			return "", err
		}
		return p.decodeString(slice)
	default:
		return "", &DecodeError{Kind: DecodeNotImplemented, Param: p.Name}
	}
	if p.Unit != "" {
		res += " " + p.Unit
	}
	return res, nil
}

func (p *Parameter) decodeString(raw []byte) (string, *DecodeError) {
	switch p.Format.Encoding {
	case EncodingUtf8:
		if !utf8.Valid(raw) {
			return "", &DecodeError{Kind: DecodeUtf8, Param: p.Name}
		}
		return string(raw), nil
	case EncodingLatin1:
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
		if err != nil {
			return "", &DecodeError{Kind: DecodeUtf8, Param: p.Name, Err: err}
		}
		return string(decoded), nil
	case EncodingUtf16:
		dec := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder()
		decoded, err := dec.Bytes(raw)
		if err != nil {
			return "", &DecodeError{Kind: DecodeUtf8, Param: p.Name, Err: err}
		}
		return string(decoded), nil
	default:
		return "", &DecodeError{Kind: DecodeNotImplemented, Param: p.Name}
	}
}

// Decode runs one parameter fully, producing a Value
func (p *Parameter) Decode(resp []byte) (Value, *DecodeError) {
	display, err := p.DisplayString(resp)
	if err != nil {
		return Value{}, err
	}
	val := Value{Name: p.Name, Display: display, Unit: p.Unit}
	if p.CanPlot() {
		num, nerr := p.Number(resp)
		if nerr == nil {
			val.Number = num
			val.Numeric = true
		}
	}
	if p.Format.Kind == FormatHexDump || p.Format.Kind == FormatString {
		if slice, serr := p.rawSlice(resp); serr == nil {
			val.RawBytes = slice
		}
	}
	return val, nil
}

func fallback(s string, def string) string {
	if s == "" {
		return def
	}
	return s
}

func trimFloat(v float64) string {
	s := fmt.Sprintf("%g", v)
	return s
}
