package caesar

import (
	"github.com/autodiag/gocbf/schema"
)

// exportParameter converts one preparation into the tool facing
// parameter shape. Preparations without a presentation or with an
// uninferrable format are skipped by the caller.
func (ecu *ECU) exportParameter(prep *Preparation) (schema.Parameter, bool) {
	pres := prep.Presentation(ecu)
	if pres == nil {
		return schema.Parameter{}, false
	}
	format, ok := pres.InferDataFormat(prep.SizeInBits)
	if !ok {
		return schema.Parameter{}, false
	}
	name := prep.Qualifier
	if pres.Description != "" {
		name = pres.Description
	}
	return schema.Parameter{
		Name:       name,
		Unit:       pres.DisplayUnit,
		StartBit:   prep.BitPos,
		LengthBits: int(prep.SizeInBits),
		ByteOrder:  schema.BigEndian,
		Format:     format,
	}, true
}

// ExportService flattens a decoded service into the exported JSON
// shape. The first output list is the primary positive response
// shape.
func (ecu *ECU) ExportService(svc *Service) schema.Service {
	out := schema.Service{
		Name:        svc.Qualifier,
		Description: svc.Name,
		Payload:     schema.HexBytes(svc.RequestBytes),
	}
	for _, prep := range svc.InputPreparations {
		if param, ok := ecu.exportParameter(prep); ok {
			out.InputParams = append(out.InputParams, param)
		}
	}
	if len(svc.OutputPreparations) > 0 {
		for _, prep := range svc.OutputPreparations[0] {
			if param, ok := ecu.exportParameter(prep); ok {
				out.OutputParams = append(out.OutputParams, param)
			}
		}
	}
	return out
}

// Export converts the decoded ECU graph into the schema model used by
// downstream tools. Variants that alias the ECU itself are skipped,
// as are services without a request payload (internal functions).
func (ecu *ECU) Export() schema.ECU {
	out := schema.ECU{
		Name:        ecu.Qualifier,
		Description: ecu.Name,
	}
	for _, v := range ecu.Variants {
		if v.Qualifier == ecu.Qualifier {
			continue
		}
		variant := schema.Variant{
			Name:        v.Qualifier,
			Description: v.Name,
		}
		for _, ptn := range v.Patterns {
			variant.Patterns = append(variant.Patterns, schema.VariantPattern{
				Vendor:    ptn.VendorName,
				VendorID:  uint32(ptn.VendorID),
				VariantID: uint32(ptn.VariantID),
			})
		}
		for _, vd := range v.DTCs {
			dtc := ecu.GlobalDTCs[vd.Index]
			variant.Errors = append(variant.Errors, schema.DTC{
				ErrorName:   dtc.Qualifier,
				Description: dtc.Description,
				Summary:     dtc.Reference,
			})
		}
		for _, idx := range v.ServiceIdx {
			svc := ecu.Service(idx)
			if svc == nil {
				continue
			}
			exported := ecu.ExportService(svc)
			if len(exported.Payload) == 0 {
				continue
			}
			variant.Services = append(variant.Services, exported)
		}
		out.Variants = append(out.Variants, variant)
	}
	return out
}
