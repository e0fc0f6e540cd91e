package core

import "context"

// TriState is the yes/no/optional enum used for equipment flags.
type TriState string

const (
	TriYes      TriState = "yes"
	TriNo       TriState = "no"
	TriOptional TriState = "optional"
)

// Vehicle is one assembled entity. Core scalars come from the primary
// source; each attribute group is nil when no sidecar row matched the id.
type Vehicle struct {
	ID              string
	Brand           string
	Model           string
	Year            int
	Type            string
	Range           float64
	BatteryCapacity float64
	HeatPump        TriState
	V2L             TriState

	ChargingProfile     *ChargingProfile
	Performance         *Performance
	Dimensions          *Dimensions
	Efficiency          *Efficiency
	Comfort             *Comfort
	Price               *Price
	RegionalStatus      *RegionalStatus
	EnvironmentalImpact *EnvironmentalImpact
	Warranty            *Warranty

	// Images and Features keep source row order. nil means no rows matched.
	Images   []string
	Features []Feature
}

type ChargingProfile struct {
	ACPowerKW               float64 `json:"acPowerKw"`
	DCPowerKW               float64 `json:"dcPowerKw"`
	FastCharge10to80Minutes float64 `json:"fastCharge10to80Minutes"`
	ACFullChargeHours       float64 `json:"acFullChargeHours"`
}

type Performance struct {
	PowerHP         float64 `json:"powerHp"`
	TorqueNm        float64 `json:"torqueNm"`
	DriveType       string  `json:"driveType"`
	TopSpeedKmh     float64 `json:"topSpeedKmh"`
	AccelerationSec float64 `json:"accelerationSec"`
}

type Dimensions struct {
	LengthMm          float64  `json:"lengthMm"`
	WidthMm           float64  `json:"widthMm"`
	HeightMm          float64  `json:"heightMm"`
	WeightKg          float64  `json:"weightKg"`
	CargoLiters       *float64 `json:"cargoLiters,omitempty"`
	GroundClearanceMm *float64 `json:"groundClearanceMm,omitempty"`
}

type Efficiency struct {
	ConsumptionKWhPer100km float64  `json:"consumptionKwhPer100km"`
	RegenerativeBraking    *bool    `json:"regenerativeBraking,omitempty"`
	EcoMode                *bool    `json:"ecoMode,omitempty"`
	EnergyRecoveryPct      *float64 `json:"energyRecoveryPct,omitempty"`
}

// Comfort carries the known comfort fields plus any other comfort columns
// as amenities keyed by their canonical header name.
type Comfort struct {
	SeatingCapacity *int           `json:"seatingCapacity,omitempty"`
	Screens         *string        `json:"screens,omitempty"`
	SoundSystem     *string        `json:"soundSystem,omitempty"`
	AutonomyLevel   *string        `json:"autonomyLevel,omitempty"`
	Amenities       map[string]any `json:"amenities,omitempty"`
}

type Price struct {
	Base        float64  `json:"base"`
	Currency    string   `json:"currency"`
	WithOptions *float64 `json:"withOptions,omitempty"`
	// Leasing is free-form: a structured cell ({monthly: …, months: …}) or text.
	Leasing any `json:"leasing,omitempty"`
}

type RegionalStatus struct {
	Available        bool    `json:"available"`
	ComingSoon       bool    `json:"comingSoon"`
	EstimatedArrival *string `json:"estimatedArrival,omitempty"`
}

type EnvironmentalImpact struct {
	CO2Savings             *float64 `json:"co2Savings,omitempty"`
	RecyclableMaterialsPct *float64 `json:"recyclableMaterialsPct,omitempty"`
	GreenEnergyPartnership *string  `json:"greenEnergyPartnership,omitempty"`
}

type Warranty struct {
	BatteryYears int  `json:"batteryYears"`
	VehicleYears int  `json:"vehicleYears"`
	MaxKm        *int `json:"maxKm,omitempty"`
}

type Feature struct {
	Name    string `json:"name"`
	IsExtra bool   `json:"isExtra"`
}

// Record is the write-ready form of a Vehicle: every group is present,
// filled from AttributeDefaults where the source had nothing.
type Record struct {
	ID              string
	Brand           string
	Model           string
	Year            int
	Type            string
	Range           float64
	BatteryCapacity float64
	HeatPump        TriState
	V2L             TriState

	ChargingProfile     ChargingProfile
	Performance         Performance
	Dimensions          Dimensions
	Efficiency          Efficiency
	Comfort             Comfort
	Price               Price
	RegionalStatus      RegionalStatus
	EnvironmentalImpact EnvironmentalImpact
	Warranty            Warranty
	Images              []string
	Features            []Feature
}

// Store is the persisted entity store the pipeline reconciles against.
// Implementations must upsert by primary key; the pipeline never joins
// or opens transactions on the store side.
type Store interface {
	ListIDs(ctx context.Context) (map[string]struct{}, error)
	Insert(ctx context.Context, rec Record) error
	Update(ctx context.Context, rec Record) error
}

// RunRecorder persists a summary of each sync run. Optional.
type RunRecorder interface {
	RecordRun(ctx context.Context, run RunSummary) error
}
