package mgmt

import (
	"fmt"

	"github.com/foresite-ag/foresite-cli/internal/apsimxml"
)

// Kind identifies an operation type.
type Kind string

// Operation kinds in their fixed within-year order.
const (
	Tillage    Kind = "tillage"
	Fertilizer Kind = "fertilizer"
	Manure     Kind = "manure"
	Planting   Kind = "planting"
	Harvest    Kind = "harvest"
)

// Operation is one dated APSIM management action.
type Operation struct {
	Kind   Kind
	Date   string // d/m/yyyy
	Action string
}

// XML renders the operation as an APSIM <operation> element.
func (o Operation) XML() *apsimxml.Node {
	return apsimxml.Elem("operation",
		apsimxml.Text("date", o.Date),
		apsimxml.Text("action", o.Action),
	).Set("condition", "start_of_day")
}

// TillageOp builds a user-defined tillage action.
func TillageOp(date, implement, fIncorp, depth string) Operation {
	return Operation{
		Kind:   Tillage,
		Date:   date,
		Action: fmt.Sprintf("SurfaceOrganicMatter tillage type = %s, f_incorp = %s (0-1), tillage_depth = %s (mm)", implement, fIncorp, depth),
	}
}

// FertilizerOp builds a mineral fertilizer application.
func FertilizerOp(date, amount, depth, formula string) Operation {
	return Operation{
		Kind:   Fertilizer,
		Date:   date,
		Action: fmt.Sprintf("Fertiliser apply amount = %s (kg/ha), depth = %s (mm), type = %s ()", amount, depth, formula),
	}
}

// ManureOp builds a surface organic matter addition.
func ManureOp(date, typ, name, mass, cnr, cpr string) Operation {
	return Operation{
		Kind:   Manure,
		Date:   date,
		Action: fmt.Sprintf("SurfaceOrganicMatter add_surfaceom type = %s, name = %s, mass = %s (kg/ha), cnr = %s, cpr = %s", typ, name, mass, cnr, cpr),
	}
}

// PlantingOp builds a sowing action.
func PlantingOp(date, crop, density, depth, cultivar, spacing string) Operation {
	return Operation{
		Kind:   Planting,
		Date:   date,
		Action: fmt.Sprintf("%s sow plants = %s (plants/m2), sowing_depth = %s (mm), cultivar = %s, row_spacing = %s (mm), crop_class = plant", crop, density, depth, cultivar, spacing),
	}
}

// HarvestOp builds an end-of-crop action.
func HarvestOp(date, crop string) Operation {
	return Operation{
		Kind:   Harvest,
		Date:   date,
		Action: fmt.Sprintf("%s end_crop", crop),
	}
}

// OperationsXML wraps operations in the named <operations> schedule.
func OperationsXML(ops []Operation) *apsimxml.Node {
	n := apsimxml.Elem("operations").Set("name", "Operations Schedule")
	for _, o := range ops {
		n.Add(o.XML())
	}
	return n
}
