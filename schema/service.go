package schema

import (
	"encoding/hex"
	"encoding/json"
	"strings"
)

// ByteOrder of a multi byte parameter inside a response payload
type ByteOrder int

const (
	BigEndian ByteOrder = iota
	LittleEndian
)

func (o ByteOrder) String() string {
	if o == LittleEndian {
		return "LittleEndian"
	}
	return "BigEndian"
}

func (o ByteOrder) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

func (o *ByteOrder) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "LittleEndian" {
		*o = LittleEndian
	} else {
		*o = BigEndian
	}
	return nil
}

// HexBytes marshals as an uppercase hex string, the format downstream
// tools expect for request payload templates
type HexBytes []byte

func (h HexBytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(strings.ToUpper(hex.EncodeToString(h)))
}

func (h *HexBytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	*h = raw
	return nil
}

// Parameter describes one field of a request or response payload
type Parameter struct {
	Name       string     `json:"name"`
	Unit       string     `json:"unit"`
	StartBit   int        `json:"start_bit"`
	LengthBits int        `json:"length_bits"`
	ByteOrder  ByteOrder  `json:"byte_order"`
	Format     DataFormat `json:"data_format"`
}

// Service is one executable diagnostic service of an ECU variant
type Service struct {
	Name         string      `json:"name"`
	Description  string      `json:"description"`
	Payload      HexBytes    `json:"payload"`
	InputParams  []Parameter `json:"input_params"`
	OutputParams []Parameter `json:"output_params"`
}

func (s *Service) HasInput() bool {
	return len(s.InputParams) > 0
}

func (s *Service) HasOutput() bool {
	return len(s.OutputParams) > 0
}

// DecodeResponse extracts every output parameter from raw response
// bytes. Parameters that fail decode end up in the error list, the
// rest still decode.
func (s *Service) DecodeResponse(resp []byte) ([]Value, []*DecodeError) {
	var values []Value
	var errs []*DecodeError
	for i := range s.OutputParams {
		v, err := s.OutputParams[i].Decode(resp)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		values = append(values, v)
	}
	return values, errs
}

// VariantPattern maps a live ECU identification response onto a
// variant
type VariantPattern struct {
	Vendor    string `json:"vendor"`
	VendorID  uint32 `json:"vendor_id"`
	VariantID uint32 `json:"variant_id"`
}

// DTC is a diagnostic trouble code an ECU variant can raise
type DTC struct {
	ErrorName   string `json:"error_name"`
	Description string `json:"description"`
	Summary     string `json:"summary"`
}

// Variant is a per-fitment selection of services and trouble codes
type Variant struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Patterns    []VariantPattern `json:"patterns"`
	Errors      []DTC            `json:"errors"`
	Services    []Service        `json:"services"`
}

// MatchVariantID returns the first pattern matching the given live
// variant id, if any
func (v *Variant) MatchVariantID(id uint32) (VariantPattern, bool) {
	for _, p := range v.Patterns {
		if p.VariantID == id {
			return p, true
		}
	}
	return VariantPattern{}, false
}

// ECU is the root of the exported model
type ECU struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Variants    []Variant `json:"variants"`
}

// FindVariant selects the variant whose pattern matches a live
// variant id read from the ECU
func (e *ECU) FindVariant(id uint32) *Variant {
	for i := range e.Variants {
		if _, ok := e.Variants[i].MatchVariantID(id); ok {
			return &e.Variants[i]
		}
	}
	return nil
}
