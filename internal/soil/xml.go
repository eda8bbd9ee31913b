package soil

import (
	"strconv"

	"github.com/foresite-ag/foresite-cli/internal/apsimxml"
)

// clayBucket maps a profile-average clay range to evaporation U and Cona.
type clayBucket struct {
	lo, hi  float64
	u, cona float64
}

var clayBuckets = []clayBucket{
	{0, 10, 6.75, 3.5},
	{10, 20, 8.5, 3.75},
	{20, 30, 9.0, 4.0},
	{30, 40, 9.5, 4.0},
	{40, 50, 9, 4.0},
	{50, 60, 8.25, 3.75},
	{60, 70, 6.75, 3.5},
	{70, 100, 6.75, 3.5},
}

// Evaporation returns the first-stage (U) and second-stage (Cona) soil
// evaporation parameters for a profile-average clay percentage.
func Evaporation(avgClay float64) (u, cona float64) {
	for _, b := range clayBuckets {
		if avgClay >= b.lo && avgClay < b.hi {
			return b.u, b.cona
		}
	}
	if avgClay < 0 {
		first := clayBuckets[0]
		return first.u, first.cona
	}
	last := clayBuckets[len(clayBuckets)-1]
	return last.u, last.cona
}

// XML renders the profile as an APSIM <Soil> element.
func (p *Profile) XML() *apsimxml.Node {
	v := p.Values
	thickness := Thicknesses()

	water := apsimxml.Elem("Water")
	for _, crop := range p.Options.Crops {
		water.Add(p.soilCrop(crop))
	}
	water.Add(
		apsimxml.Doubles("Thickness", thickness),
		apsimxml.Doubles("BD", v.BD),
		apsimxml.Doubles("AirDry", v.AirDry),
		apsimxml.Doubles("LL15", v.LL15),
		apsimxml.Doubles("DUL", v.DUL),
		apsimxml.Doubles("SAT", v.SAT),
		apsimxml.Doubles("KS", v.KS),
	)

	var soilWater *apsimxml.Node
	if p.Options.SWIM {
		soilWater = SwimXML(3)
	} else {
		soilWater = p.soilWaterXML()
	}

	som := apsimxml.Elem("SoilOrganicMatter",
		apsimxml.Value("RootCN", RootCN),
		apsimxml.Value("RootWt", RootWt),
		apsimxml.Value("SoilCN", SoilCN),
		apsimxml.Value("EnrACoeff", EnrACoeff),
		apsimxml.Value("EnrBCoeff", EnrBCoeff),
		apsimxml.Doubles("Thickness", thickness),
		apsimxml.Doubles("OC", v.OC),
		apsimxml.Doubles("FBiom", v.FBiom),
		apsimxml.Doubles("FInert", v.FInert),
	)

	analysis := apsimxml.Elem("Analysis",
		apsimxml.Doubles("Thickness", thickness),
		apsimxml.Doubles("PH", v.PH),
	)

	sample := apsimxml.Elem("Sample",
		apsimxml.Elem("Date").Set("type", "date").Set("description", "Sample Date:"),
		apsimxml.Doubles("Thickness", thickness),
		apsimxml.Doubles("NO3", v.NO3),
		apsimxml.Doubles("NH4", v.NH4),
	).Set("name", "Initial nitrogen")

	initial := apsimxml.Elem("InitialWater",
		apsimxml.Value("FractionFull", 1),
		apsimxml.Text("PercentMethod", "FilledFromTop"),
	).Set("name", "Initial Water")

	return apsimxml.Elem("Soil", initial, water, soilWater, som, analysis, sample)
}

func (p *Profile) soilCrop(name string) *apsimxml.Node {
	xf := make([]float64, len(Layers))
	for i := range xf {
		xf[i] = 1
	}
	return apsimxml.Elem("SoilCrop",
		apsimxml.Doubles("Thickness", Thicknesses()),
		apsimxml.Doubles("LL", p.CropLL()),
		apsimxml.Doubles("KL", CropKL()),
		apsimxml.Doubles("XF", xf),
	).Set("name", name)
}

// soilWaterXML renders the cascading-bucket SoilWater module.
func (p *Profile) soilWaterXML() *apsimxml.Node {
	u, cona := Evaporation(p.AverageClay())
	return apsimxml.Elem("SoilWater",
		apsimxml.Value("SummerCona", cona),
		apsimxml.Value("SummerU", u),
		apsimxml.Text("SummerDate", "1-Jun"),
		apsimxml.Value("WinterCona", cona),
		apsimxml.Value("WinterU", u),
		apsimxml.Text("WinterDate", "1-Dec"),
		apsimxml.Value("DiffusConst", p.DiffusConst),
		apsimxml.Value("DiffusSlope", p.DiffusSlope),
		apsimxml.Value("Salb", Salb),
		apsimxml.Value("CN2Bare", p.CN2Bare),
		apsimxml.Value("CNRed", 20),
		apsimxml.Value("CNCov", 0.8),
		apsimxml.Text("Slope", "NaN"),
		apsimxml.Text("DischargeWidth", "NaN"),
		apsimxml.Text("CatchmentArea", "NaN"),
		apsimxml.Text("MaxPond", "NaN"),
		apsimxml.Doubles("Thickness", Thicknesses()),
		apsimxml.Doubles("SWCON", p.Values.SWCON),
	)
}

// SwimXML renders the SWIM module with solute parameters, a water table and
// a subsurface tile drain. layers sets the solute layer count; the arrays
// hold layers-1 entries.
func SwimXML(layers int) *apsimxml.Node {
	perLayer := func(name string, v float64) *apsimxml.Node {
		n := apsimxml.Elem(name)
		for i := 1; i < layers; i++ {
			n.Add(apsimxml.Value("double", v))
		}
		return n
	}
	num := func(name string, v int) *apsimxml.Node {
		return apsimxml.Text(name, strconv.Itoa(v))
	}

	solutes := apsimxml.Elem("SwimSoluteParameters",
		num("Dis", 15),
		num("Disp", 1),
		num("A", 1),
		num("DTHC", 1),
		num("DTHP", 1),
		num("WaterTableCl", 0),
		num("WaterTableNO3", 0),
		num("WaterTableNH4", 0),
		num("WaterTableUrea", 0),
		num("WaterTableTracer", 0),
		num("WaterTableMineralisationInhibitor", 0),
		num("WaterTableUreaseInhibitor", 0),
		num("WaterTableNitrificationInhibitor", 0),
		num("WaterTableDenitrificationInhibitor", 0),
		perLayer("Thickness", 1000),
		perLayer("NO3Exco", 0),
		perLayer("NO3FIP", 1),
		perLayer("NH4Exco", 100),
		perLayer("NH4FIP", 1),
		perLayer("UreaExco", 0),
		perLayer("UreaFIP", 1),
		perLayer("ClExco", 0),
		perLayer("ClFIP", 1),
	)

	return apsimxml.Elem("Swim",
		apsimxml.Value("Salb", Salb),
		num("CN2Bare", 75),
		num("CNRed", 20),
		apsimxml.Value("CNCov", 0.8),
		apsimxml.Value("KDul", 0.1),
		num("PSIDul", -100),
		apsimxml.Text("VC", "true"),
		num("DTmin", 0),
		num("DTmax", 1440),
		num("MaxWaterIncrement", 10),
		num("SpaceWeightingFactor", 0),
		num("SoluteSpaceWeightingFactor", 0),
		apsimxml.Text("Diagnostics", "true"),
		solutes,
		apsimxml.Elem("SwimWaterTable", num("WaterTableDepth", 2000)),
		apsimxml.Elem("SwimSubsurfaceDrain",
			num("DrainDepth", 1000),
			num("DrainSpacing", 13500),
			num("DrainRadius", 52), // 4 inch tile
			num("Klat", 2800),
			num("ImpermDepth", 3900),
		),
	)
}
