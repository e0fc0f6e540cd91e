package core

// DefaultCurrency is the currency assumed for prices without one.
const DefaultCurrency = "TRY"

// AttributeDefaults holds the value written for every group a vehicle
// arrived without.
type AttributeDefaults struct {
	HeatPump TriState
	V2L      TriState

	ChargingProfile     ChargingProfile
	Performance         Performance
	Dimensions          Dimensions
	Efficiency          Efficiency
	Comfort             Comfort
	Price               Price
	RegionalStatus      RegionalStatus
	EnvironmentalImpact EnvironmentalImpact
	Warranty            Warranty
}

// DefaultAttributeGroups returns the defaults applied at write time.
func DefaultAttributeGroups() AttributeDefaults {
	return AttributeDefaults{
		HeatPump:       TriNo,
		V2L:            TriNo,
		Price:          Price{Base: 0, Currency: DefaultCurrency},
		Performance:    Performance{},
		Warranty:       Warranty{},
		RegionalStatus: RegionalStatus{Available: false, ComingSoon: false},
	}
}

// Apply returns the write-ready record for v. Groups and lists absent from
// v are filled from d; groups that are present are copied as-is, except
// that a price without a currency gets DefaultCurrency.
func (d AttributeDefaults) Apply(v Vehicle) Record {
	rec := Record{
		ID:              v.ID,
		Brand:           v.Brand,
		Model:           v.Model,
		Year:            v.Year,
		Type:            v.Type,
		Range:           v.Range,
		BatteryCapacity: v.BatteryCapacity,
		HeatPump:        orTri(v.HeatPump, d.HeatPump),
		V2L:             orTri(v.V2L, d.V2L),

		ChargingProfile:     or(v.ChargingProfile, d.ChargingProfile),
		Performance:         or(v.Performance, d.Performance),
		Dimensions:          or(v.Dimensions, d.Dimensions),
		Efficiency:          or(v.Efficiency, d.Efficiency),
		Comfort:             or(v.Comfort, d.Comfort),
		Price:               or(v.Price, d.Price),
		RegionalStatus:      or(v.RegionalStatus, d.RegionalStatus),
		EnvironmentalImpact: or(v.EnvironmentalImpact, d.EnvironmentalImpact),
		Warranty:            or(v.Warranty, d.Warranty),

		Images:   v.Images,
		Features: v.Features,
	}

	if rec.Year == 0 {
		rec.Year = DefaultYear
	}
	if rec.Price.Currency == "" {
		rec.Price.Currency = DefaultCurrency
	}
	if rec.Images == nil {
		rec.Images = []string{}
	}
	if rec.Features == nil {
		rec.Features = []Feature{}
	}
	return rec
}

func or[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}

func orTri(v, def TriState) TriState {
	if v == "" {
		return def
	}
	return v
}
