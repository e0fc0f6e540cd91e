package core

import (
	"github.com/JonMunkholm/evsync/internal/source"
)

func init() {
	Register(Definition{
		Source: source.Charging,
		Label:  "Charging times",
		Attach: func(v *Vehicle, rows []Row) {
			r := rows[0]
			v.ChargingProfile = &ChargingProfile{
				ACPowerKW:               r.Number("acPowerKw", 0),
				DCPowerKW:               r.Number("dcPowerKw", 0),
				FastCharge10to80Minutes: r.Number("fastCharge10to80Minutes", 0),
				ACFullChargeHours:       r.Number("acFullChargeHours", 0),
			}
		},
	})

	Register(Definition{
		Source: source.Performance,
		Label:  "Performance",
		Attach: func(v *Vehicle, rows []Row) {
			r := rows[0]
			v.Performance = &Performance{
				PowerHP:         r.Number("powerHp", 0),
				TorqueNm:        r.Number("torqueNm", 0),
				DriveType:       r.Text("driveType"),
				TopSpeedKmh:     r.Number("topSpeedKmh", 0),
				AccelerationSec: r.Number("accelerationSec", 0),
			}
		},
	})

	Register(Definition{
		Source: source.Dimensions,
		Label:  "Dimensions",
		Attach: func(v *Vehicle, rows []Row) {
			r := rows[0]
			v.Dimensions = &Dimensions{
				LengthMm:          r.Number("lengthMm", 0),
				WidthMm:           r.Number("widthMm", 0),
				HeightMm:          r.Number("heightMm", 0),
				WeightKg:          r.Number("weightKg", 0),
				CargoLiters:       r.OptNumber("cargoLiters"),
				GroundClearanceMm: r.OptNumber("groundClearanceMm"),
			}
		},
	})

	Register(Definition{
		Source: source.Efficiency,
		Label:  "Efficiency",
		Attach: func(v *Vehicle, rows []Row) {
			r := rows[0]
			v.Efficiency = &Efficiency{
				ConsumptionKWhPer100km: r.Number("consumptionKwhPer100km", 0),
				RegenerativeBraking:    r.OptFlag("regenerativeBraking"),
				EcoMode:                r.OptFlag("ecoMode"),
				EnergyRecoveryPct:      r.OptNumber("energyRecoveryPct"),
			}
		},
	})

	Register(Definition{
		Source: source.Comfort,
		Label:  "Comfort",
		Attach: attachComfort,
	})

	Register(Definition{
		Source: source.Price,
		Label:  "Price",
		Attach: func(v *Vehicle, rows []Row) {
			r := rows[0]
			v.Price = &Price{
				Base:        r.Number("base", 0),
				Currency:    r.Text("currency"),
				WithOptions: r.OptNumber("withOptions"),
				Leasing:     r.Value("leasing").Any(),
			}
		},
	})

	Register(Definition{
		Source: source.Warranty,
		Label:  "Warranty",
		// Warranty sheets label their columns "Battery" and "Vehicle",
		// which elsewhere mean battery capacity and the vehicle id.
		Aliases: map[string]string{
			"battery": "batteryYears",
			"vehicle": "vehicleYears",
			"km":      "maxKm",
		},
		Attach: func(v *Vehicle, rows []Row) {
			r := rows[0]
			v.Warranty = &Warranty{
				BatteryYears: r.Int("batteryYears", 0),
				VehicleYears: r.Int("vehicleYears", 0),
				MaxKm:        r.OptInt("maxKm"),
			}
		},
	})

	Register(Definition{
		Source: source.Environmental,
		Label:  "Environmental impact",
		Attach: func(v *Vehicle, rows []Row) {
			r := rows[0]
			v.EnvironmentalImpact = &EnvironmentalImpact{
				CO2Savings:             r.OptNumber("co2Savings"),
				RecyclableMaterialsPct: r.OptNumber("recyclableMaterialsPct"),
				GreenEnergyPartnership: r.OptText("greenEnergyPartnership"),
			}
		},
	})

	Register(Definition{
		Source: source.Regional,
		Label:  "Regional status",
		Attach: func(v *Vehicle, rows []Row) {
			r := rows[0]
			v.RegionalStatus = &RegionalStatus{
				Available:        r.Flag("available", false),
				ComingSoon:       r.Flag("comingSoon", false),
				EstimatedArrival: r.OptText("estimatedArrival"),
			}
		},
	})

	Register(Definition{
		Source: source.Features,
		Label:  "Features",
		Shape:  ShapeList,
		Attach: func(v *Vehicle, rows []Row) {
			for _, r := range rows {
				name := r.Text("name")
				if name == "" {
					continue
				}
				v.Features = append(v.Features, Feature{
					Name:    name,
					IsExtra: r.Flag("isExtra", false),
				})
			}
		},
	})

	Register(Definition{
		Source: source.Images,
		Label:  "Images",
		Shape:  ShapeList,
		Attach: func(v *Vehicle, rows []Row) {
			for _, r := range rows {
				url := r.Text("url")
				if url == "" && len(r.Cells) > 1 {
					// Image sheets often leave the URL column unlabelled.
					url = firstCell(r.Cells[1:])
				}
				if url == "" {
					continue
				}
				v.Images = append(v.Images, url)
			}
		},
	})
}

// comfortFields are the comfort columns with dedicated struct fields.
// Every other comfort column becomes an amenity.
var comfortFields = map[string]bool{
	"seatingCapacity": true,
	"screens":         true,
	"soundSystem":     true,
	"autonomyLevel":   true,
}

func attachComfort(v *Vehicle, rows []Row) {
	r := rows[0]
	c := &Comfort{
		SeatingCapacity: r.OptInt("seatingCapacity"),
		Screens:         r.OptText("screens"),
		SoundSystem:     r.OptText("soundSystem"),
		AutonomyLevel:   r.OptText("autonomyLevel"),
	}

	for _, field := range r.Order {
		if comfortFields[field] {
			continue
		}
		val := comfortAmenity(r.Value(field))
		if val == nil {
			continue
		}
		if c.Amenities == nil {
			c.Amenities = make(map[string]any)
		}
		c.Amenities[field] = val
	}

	v.Comfort = c
}

// comfortAmenity reads yes/no cells as booleans; other amenity cells keep
// their coerced value.
func comfortAmenity(v TypedValue) any {
	if v.Kind == KindText {
		if b, ok := parseBool(v.Text); ok {
			return b
		}
	}
	return v.Any()
}

func firstCell(cells []string) string {
	for _, c := range cells {
		if c = CleanCell(c); c != "" {
			return c
		}
	}
	return ""
}
