package core

// convert.go turns raw sheet cells into typed values.
//
// Cells arrive as free text typed by people: units after numbers ("510 km"),
// currency symbols, Turkish and English yes/no words, thousands separators
// in either convention, and occasionally a JSON or YAML flow value. Every
// coercion returns a TypedValue; when the text does not fit the field's
// kind the value degrades to Text and a *ParseError says why. Nothing here
// panics or returns a zero value silently.

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/goccy/go-yaml"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultYear is used when a year cell is empty or unreadable.
const DefaultYear = 2024

// ValueKind tags which member of a TypedValue is set.
type ValueKind int

const (
	KindEmpty ValueKind = iota
	KindText
	KindInt
	KindFloat
	KindBool
	KindTri
	KindStructured
)

func (k ValueKind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindText:
		return "text"
	case KindInt:
		return "int"
	case KindFloat:
		return "number"
	case KindBool:
		return "bool"
	case KindTri:
		return "tristate"
	case KindStructured:
		return "structured"
	default:
		return "unknown"
	}
}

// TypedValue is a coerced cell. Text always holds the cleaned source text.
type TypedValue struct {
	Kind       ValueKind
	Text       string
	Int        int
	Float      float64
	Bool       bool
	Tri        TriState
	Structured any
}

// IsEmpty reports whether the cell had no content.
func (v TypedValue) IsEmpty() bool {
	return v.Kind == KindEmpty
}

// Number returns the numeric value, or def for non-numeric kinds.
func (v TypedValue) Number(def float64) float64 {
	switch v.Kind {
	case KindFloat:
		return v.Float
	case KindInt:
		return float64(v.Int)
	default:
		return def
	}
}

// Integer returns the integer value, or def for non-numeric kinds.
func (v TypedValue) Integer(def int) int {
	switch v.Kind {
	case KindInt:
		return v.Int
	case KindFloat:
		return int(v.Float)
	default:
		return def
	}
}

// Flag returns the boolean value, or def when the cell is not a boolean.
func (v TypedValue) Flag(def bool) bool {
	if v.Kind == KindBool {
		return v.Bool
	}
	return def
}

// TriState returns the enum value, or def when the cell is not one.
func (v TypedValue) TriState(def TriState) TriState {
	if v.Kind == KindTri {
		return v.Tri
	}
	return def
}

// Any returns the most specific Go value for the cell, nil when empty.
func (v TypedValue) Any() any {
	switch v.Kind {
	case KindEmpty:
		return nil
	case KindInt:
		return v.Int
	case KindFloat:
		return v.Float
	case KindBool:
		return v.Bool
	case KindTri:
		return string(v.Tri)
	case KindStructured:
		return v.Structured
	default:
		return v.Text
	}
}

// fieldKind is the type a canonical field expects.
type fieldKind int

const (
	fieldAny fieldKind = iota
	fieldText
	fieldYear
	fieldInt
	fieldNumber
	fieldTri
	fieldBool
)

func (k fieldKind) String() string {
	switch k {
	case fieldText:
		return "text"
	case fieldYear:
		return "year"
	case fieldInt:
		return "integer"
	case fieldNumber:
		return "number"
	case fieldTri:
		return "yes/no/optional"
	case fieldBool:
		return "boolean"
	default:
		return "value"
	}
}

// fieldKinds maps canonical field names to their expected kind.
// Fields missing from this table are fieldAny.
var fieldKinds = map[string]fieldKind{
	// primary
	"id":              fieldText,
	"brand":           fieldText,
	"model":           fieldText,
	"year":            fieldYear,
	"type":            fieldText,
	"range":           fieldNumber,
	"batteryCapacity": fieldNumber,
	"heatPump":        fieldTri,
	"v2l":             fieldTri,

	// charging
	"acPowerKw":               fieldNumber,
	"dcPowerKw":               fieldNumber,
	"fastCharge10to80Minutes": fieldNumber,
	"acFullChargeHours":       fieldNumber,

	// performance
	"powerHp":         fieldNumber,
	"torqueNm":        fieldNumber,
	"driveType":       fieldText,
	"topSpeedKmh":     fieldNumber,
	"accelerationSec": fieldNumber,

	// dimensions
	"lengthMm":          fieldNumber,
	"widthMm":           fieldNumber,
	"heightMm":          fieldNumber,
	"weightKg":          fieldNumber,
	"cargoLiters":       fieldNumber,
	"groundClearanceMm": fieldNumber,

	// efficiency
	"consumptionKwhPer100km": fieldNumber,
	"regenerativeBraking":    fieldBool,
	"ecoMode":                fieldBool,
	"energyRecoveryPct":      fieldNumber,

	// comfort
	"seatingCapacity": fieldInt,
	"screens":         fieldText,
	"soundSystem":     fieldText,
	"autonomyLevel":   fieldText,

	// price
	"base":        fieldNumber,
	"currency":    fieldText,
	"withOptions": fieldNumber,
	"leasing":     fieldAny,

	// regional
	"available":        fieldBool,
	"comingSoon":       fieldBool,
	"estimatedArrival": fieldText,

	// environmental
	"co2Savings":             fieldNumber,
	"recyclableMaterialsPct": fieldNumber,
	"greenEnergyPartnership": fieldText,

	// warranty
	"batteryYears": fieldInt,
	"vehicleYears": fieldInt,
	"maxKm":        fieldInt,

	// lists
	"name":    fieldText,
	"isExtra": fieldBool,
	"url":     fieldText,
}

// headerAliases maps normalized header labels to canonical field names.
// Keys are produced by NormalizeHeader. Sources can override entries
// through their Definition.
var headerAliases = map[string]string{
	"id": "id", "identifier": "id", "vehicleid": "id", "evid": "id", "aracid": "id",

	"brand": "brand", "make": "brand", "manufacturer": "brand", "marka": "brand",
	"model": "model", "modelname": "model",
	"year": "year", "modelyear": "year", "yil": "year", "yıl": "year",
	"type": "type", "category": "type", "bodytype": "type", "segment": "type", "kategori": "type",
	"range": "range", "rangekm": "range", "wltprange": "range", "menzil": "range",
	"batterycapacity": "batteryCapacity", "batterycapacitykwh": "batteryCapacity", "battery": "batteryCapacity", "batterykwh": "batteryCapacity",
	"capacity": "batteryCapacity", "bataryakapasitesi": "batteryCapacity",
	"heatpump": "heatPump", "isıpompası": "heatPump",
	"v2l": "v2l", "vehicletoload": "v2l",

	"acpower": "acPowerKw", "acpowerkw": "acPowerKw", "ackw": "acPowerKw", "ac": "acPowerKw",
	"dcpower": "dcPowerKw", "dcpowerkw": "dcPowerKw", "dckw": "dcPowerKw", "dc": "dcPowerKw",
	"fastcharge10to80minutes": "fastCharge10to80Minutes", "fastcharge": "fastCharge10to80Minutes",
	"fastchargetime": "fastCharge10to80Minutes", "10to80": "fastCharge10to80Minutes",
	"1080": "fastCharge10to80Minutes", "fastcharge1080": "fastCharge10to80Minutes",
	"acfullchargehours": "acFullChargeHours", "acfullcharge": "acFullChargeHours",
	"acchargetime": "acFullChargeHours",

	"power": "powerHp", "powerhp": "powerHp", "hp": "powerHp", "horsepower": "powerHp", "guc": "powerHp",
	"torque": "torqueNm", "torquenm": "torqueNm", "tork": "torqueNm",
	"drivetype": "driveType", "drive": "driveType", "drivetrain": "driveType",
	"topspeed": "topSpeedKmh", "topspeedkmh": "topSpeedKmh", "maxspeed": "topSpeedKmh",
	"acceleration": "accelerationSec", "accelerationsec": "accelerationSec",
	"0100": "accelerationSec", "0to100": "accelerationSec",

	"length": "lengthMm", "lengthmm": "lengthMm",
	"width": "widthMm", "widthmm": "widthMm",
	"height": "heightMm", "heightmm": "heightMm",
	"weight": "weightKg", "weightkg": "weightKg", "curbweight": "weightKg",
	"cargo": "cargoLiters", "cargoliters": "cargoLiters", "cargocapacity": "cargoLiters", "trunk": "cargoLiters",
	"groundclearance": "groundClearanceMm", "groundclearancemm": "groundClearanceMm",

	"consumption": "consumptionKwhPer100km", "consumptionkwhper100km": "consumptionKwhPer100km",
	"kwh100km": "consumptionKwhPer100km", "kwhper100km": "consumptionKwhPer100km",
	"regenerativebraking": "regenerativeBraking", "regen": "regenerativeBraking",
	"ecomode": "ecoMode",
	"energyrecovery": "energyRecoveryPct", "energyrecoverypct": "energyRecoveryPct",

	"seats": "seatingCapacity", "seatingcapacity": "seatingCapacity", "seatcount": "seatingCapacity",
	"screens": "screens", "screen": "screens",
	"soundsystem": "soundSystem", "audio": "soundSystem",
	"autonomylevel": "autonomyLevel", "autonomy": "autonomyLevel",

	"base": "base", "baseprice": "base", "price": "base", "fiyat": "base",
	"currency": "currency", "parabirimi": "currency",
	"withoptions": "withOptions", "optionsprice": "withOptions", "fullyloaded": "withOptions",
	"leasing": "leasing", "lease": "leasing",

	"available": "available", "isavailable": "available",
	"comingsoon": "comingSoon",
	"estimatedarrival": "estimatedArrival", "arrival": "estimatedArrival", "eta": "estimatedArrival",

	"co2savings": "co2Savings", "co2": "co2Savings",
	"recyclablematerials": "recyclableMaterialsPct", "recyclablematerialspct": "recyclableMaterialsPct",
	"recyclable": "recyclableMaterialsPct",
	"greenenergypartnership": "greenEnergyPartnership", "greenenergy": "greenEnergyPartnership",

	"batteryyears": "batteryYears", "batterywarranty": "batteryYears",
	"vehicleyears": "vehicleYears", "vehiclewarranty": "vehicleYears",
	"maxkm": "maxKm", "kmlimit": "maxKm", "mileage": "maxKm",

	"name": "name", "feature": "name", "featurename": "name",
	"isextra": "isExtra", "extra": "isExtra",
	"url": "url", "image": "url", "imageurl": "url", "src": "url", "link": "url",
}

var (
	// numberPrefix matches the leading number of a cleaned cell ("7.2" in "7.2 s").
	numberPrefix = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?`)
	yearPattern  = regexp.MustCompile(`\b(19|20)\d{2}\b`)

	foldCase  = cases.Fold()
	titleCase = cases.Title(language.Und, cases.NoLower)

	// currencyTokens are stripped before numeric parsing.
	currencyTokens = []string{"$", "€", "£", "₺", "try", "usd", "eur", "tl"}
)

// CleanCell removes common spreadsheet artifacts from a cell value:
// surrounding whitespace, an Excel formula prefix (="...") and
// surrounding quotes.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.TrimSpace(strings.Trim(s, `"'`))
}

// NormalizeHeader folds a header label to its lookup key: case folded,
// with everything but letters and digits removed.
func NormalizeHeader(label string) string {
	folded := foldCase.String(CleanCell(label))
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CanonicalField resolves a header label to a canonical field name.
// overrides are consulted before the global alias table. Unknown labels
// become a camelCase key built from their words so they can still be
// carried as free-form attributes.
func CanonicalField(label string, overrides map[string]string) string {
	key := NormalizeHeader(label)
	if name, ok := overrides[key]; ok {
		return name
	}
	if name, ok := headerAliases[key]; ok {
		return name
	}
	return camelKey(label)
}

// camelKey turns "Wireless Charging Pad" into "wirelessChargingPad".
func camelKey(label string) string {
	words := strings.FieldsFunc(CleanCell(label), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var b strings.Builder
	for i, w := range words {
		w = foldCase.String(w)
		if i > 0 {
			w = titleCase.String(w)
		}
		b.WriteString(w)
	}
	return b.String()
}

// CoerceCell converts one cell under the given header. It returns the
// canonical field name and the typed value. When the text does not fit
// the field's kind, the value falls back to Text and err is a *ParseError.
func CoerceCell(header, raw string) (string, TypedValue, error) {
	field := CanonicalField(header, nil)
	v, err := Coerce(field, raw)
	if err != nil {
		err.(*ParseError).Header = header
	}
	return field, v, err
}

// Coerce converts raw text for an already-canonical field name.
// The returned error, when non-nil, is always a *ParseError.
func Coerce(field, raw string) (TypedValue, error) {
	text := CleanCell(raw)
	if text == "" {
		return TypedValue{Kind: KindEmpty}, nil
	}

	kind := fieldKinds[field]
	fallback := TypedValue{Kind: KindText, Text: text}
	fail := func() (TypedValue, error) {
		return fallback, &ParseError{Field: field, Raw: text, Want: kind.String()}
	}

	switch kind {
	case fieldText:
		return fallback, nil

	case fieldYear:
		m := yearPattern.FindString(text)
		if m == "" {
			return fail()
		}
		y, _ := strconv.Atoi(m)
		return TypedValue{Kind: KindInt, Text: text, Int: y}, nil

	case fieldInt:
		f, ok := parseNumber(text)
		if !ok {
			return fail()
		}
		return TypedValue{Kind: KindInt, Text: text, Int: int(f + 0.5*sign(f))}, nil

	case fieldNumber:
		f, ok := parseNumber(text)
		if !ok {
			return fail()
		}
		return TypedValue{Kind: KindFloat, Text: text, Float: f}, nil

	case fieldTri:
		t, ok := parseTriState(text)
		if !ok {
			return fail()
		}
		return TypedValue{Kind: KindTri, Text: text, Tri: t}, nil

	case fieldBool:
		b, ok := parseBool(text)
		if !ok {
			return fail()
		}
		return TypedValue{Kind: KindBool, Text: text, Bool: b}, nil

	default:
		if looksStructured(text) {
			s, ok := parseStructured(text)
			if !ok {
				return fallback, &ParseError{Field: field, Raw: text, Want: "structured value"}
			}
			return TypedValue{Kind: KindStructured, Text: text, Structured: s}, nil
		}
		return fallback, nil
	}
}

func sign(f float64) float64 {
	if f < 0 {
		return -1
	}
	return 1
}

// parseNumber reads the leading number of a cell after removing currency
// markers and thousands separators. "(1,200)" is negative accounting form.
func parseNumber(s string) (float64, bool) {
	s = strings.ToLower(strings.TrimSpace(s))

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	for _, tok := range currencyTokens {
		s = strings.ReplaceAll(s, tok, "")
	}
	s = strings.TrimLeft(strings.TrimSpace(s), "~≈")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "\u00a0", "")
	s = normalizeSeparators(s)

	m := numberPrefix.FindString(s)
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	if negative {
		f = -f
	}
	return f, true
}

// normalizeSeparators rewrites "1.234,5" and "1,234.5" to "1234.5".
// A lone comma followed by exactly three digits is a thousands separator;
// any other lone comma is a decimal comma. A single dot is always a decimal
// point, so "45.000" reads as 45.
func normalizeSeparators(s string) string {
	end := len(s)
	for i, r := range s {
		if !unicode.IsDigit(r) && r != '.' && r != ',' && r != '+' && r != '-' {
			end = i
			break
		}
	}
	num, rest := s[:end], s[end:]

	dot := strings.LastIndex(num, ".")
	comma := strings.LastIndex(num, ",")
	switch {
	case dot >= 0 && comma >= 0:
		if comma > dot {
			num = strings.ReplaceAll(num, ".", "")
			num = strings.Replace(num, ",", ".", 1)
		} else {
			num = strings.ReplaceAll(num, ",", "")
		}
	case comma >= 0:
		if strings.Count(num, ",") > 1 || len(num)-comma-1 == 3 {
			num = strings.ReplaceAll(num, ",", "")
		} else {
			num = strings.Replace(num, ",", ".", 1)
		}
	case strings.Count(num, ".") > 1:
		num = strings.ReplaceAll(num, ".", "")
	}
	return num + rest
}

// parseBool accepts true/false, yes/no, t/f, y/n, 1/0 and the Turkish
// evet/hayır and var/yok.
func parseBool(s string) (bool, bool) {
	switch foldCase.String(strings.TrimSpace(s)) {
	case "true", "t", "yes", "y", "1", "evet", "var", "✓":
		return true, true
	case "false", "f", "no", "n", "0", "hayır", "hayir", "yok", "-":
		return false, true
	default:
		return false, false
	}
}

func parseTriState(s string) (TriState, bool) {
	switch foldCase.String(strings.TrimSpace(s)) {
	case "optional", "option", "opsiyonel", "opt":
		return TriOptional, true
	}
	b, ok := parseBool(s)
	if !ok {
		return "", false
	}
	if b {
		return TriYes, true
	}
	return TriNo, true
}

func looksStructured(s string) bool {
	return strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")
}

// parseStructured decodes a JSON or YAML flow value. YAML flow syntax is a
// superset of JSON, so one decoder covers both. Values the store could not
// encode as JSON, such as .inf or .nan, are rejected.
func parseStructured(s string) (any, bool) {
	var out any
	if err := yaml.Unmarshal([]byte(s), &out); err != nil {
		return nil, false
	}
	return jsonSafe(out)
}

// jsonSafe reports whether v encodes as JSON, converting maps with
// non-string keys to string-keyed maps on the way.
func jsonSafe(v any) (any, bool) {
	switch x := v.(type) {
	case float64:
		return x, !math.IsInf(x, 0) && !math.IsNaN(x)
	case float32:
		f := float64(x)
		return x, !math.IsInf(f, 0) && !math.IsNaN(f)
	case []any:
		for i, e := range x {
			safe, ok := jsonSafe(e)
			if !ok {
				return nil, false
			}
			x[i] = safe
		}
		return x, true
	case map[string]any:
		for k, e := range x {
			safe, ok := jsonSafe(e)
			if !ok {
				return nil, false
			}
			x[k] = safe
		}
		return x, true
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			safe, ok := jsonSafe(e)
			if !ok {
				return nil, false
			}
			out[fmt.Sprint(k)] = safe
		}
		return out, true
	default:
		return v, true
	}
}
