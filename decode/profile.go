package decode

import "fmt"

// UnitSystem selects which storage-hint column a FieldDescriptor exposes
// for unit-dependent fields (spec.md §6's "storage_hint_per_unit_system").
type UnitSystem uint8

const (
	UnitsMetric UnitSystem = iota
	UnitsStatute
	UnitsRaw
)

// FieldDescriptor is one profile field entry (spec.md §3). Scale/Offset
// default to 1/0 (no-op) when the field carries no scale factor. DateTime
// marks fields that additionally receive the FIT epoch shift beyond the
// universal field number 253 case.
type FieldDescriptor struct {
	Name     string
	Scale    float64
	Offset   float64
	Units    string
	DateTime bool
}

func (f FieldDescriptor) scale() float64 {
	if f.Scale == 0 {
		return 1
	}
	return f.Scale
}

// MessageDescriptor is one profile message entry: a name and a field
// table keyed by field number (spec.md §3).
type MessageDescriptor struct {
	Name   string
	Fields map[uint8]FieldDescriptor
}

// scaled is a convenience constructor for a scale/offset field.
func scaled(name string, scale, offset float64, units string) FieldDescriptor {
	return FieldDescriptor{Name: name, Scale: scale, Offset: offset, Units: units}
}

func plain(name string, units string) FieldDescriptor {
	return FieldDescriptor{Name: name, Units: units}
}

func datetime(name string) FieldDescriptor {
	return FieldDescriptor{Name: name, Units: "s_since_unix_epoch", DateTime: true}
}

// Profile is the static message/field catalogue (spec.md §3, §4.3, §6),
// extended at runtime with developer field descriptors.
type Profile struct {
	messages map[uint16]MessageDescriptor
	dev      map[devKey]DeveloperFieldDescriptor
}

type devKey struct {
	devIdx uint8
	field  uint8
}

// DeveloperFieldDescriptor describes a runtime-registered developer field
// (spec.md §3), installed from a field_description data message.
type DeveloperFieldDescriptor struct {
	Name          string
	Units         string
	BaseType      BaseType
	NativeMesgNum uint16
	HasNative     bool
	NativeField   uint8
}

// NewProfile returns a Profile seeded with the built-in message catalogue
// from spec.md §6.
func NewProfile() *Profile {
	return &Profile{
		messages: builtinMessages,
		dev:      make(map[devKey]DeveloperFieldDescriptor),
	}
}

// Message returns the catalogue entry for a global message number, and
// whether it is known.
func (p *Profile) Message(global uint16) (MessageDescriptor, bool) {
	m, ok := p.messages[global]
	return m, ok
}

// Field returns the field descriptor for (global, fieldNum), falling back
// to a synthetic "field_N" descriptor when global is known but the field
// number is uncatalogued.
func (p *Profile) Field(global uint16, fieldNum uint8) FieldDescriptor {
	if m, ok := p.messages[global]; ok {
		if f, ok := m.Fields[fieldNum]; ok {
			return f
		}
	}
	return FieldDescriptor{Name: fmt.Sprintf("field_%d", fieldNum)}
}

// RegisterDeveloperField installs a descriptor decoded from a
// field_description message (spec.md §4.3).
func (p *Profile) RegisterDeveloperField(devIdx uint8, d DeveloperFieldDescriptor) {
	p.dev[devKey{devIdx: devIdx, field: d.NativeField}] = d
}

// DeveloperField looks up the descriptor for (developerDataIndex,
// fieldNumber).
func (p *Profile) DeveloperField(devIdx, fieldNum uint8) (DeveloperFieldDescriptor, bool) {
	d, ok := p.dev[devKey{devIdx: devIdx, field: fieldNum}]
	return d, ok
}

// DeveloperFields returns every registered developer field descriptor,
// for introspection (SPEC_FULL.md supplemental features).
func (p *Profile) DeveloperFields() []DeveloperFieldDescriptor {
	out := make([]DeveloperFieldDescriptor, 0, len(p.dev))
	for _, d := range p.dev {
		out = append(out, d)
	}
	return out
}

// alwaysNullSessionFields lists the session fields that must be emitted
// as explicit null on an invalid-sentinel read, rather than omitted
// (spec.md §4.2 step 3, §6).
var alwaysNullSessionFields = map[string]bool{
	"avg_heart_rate": true, "max_heart_rate": true, "avg_power": true,
	"max_power": true, "normalized_power": true, "total_work": true,
	"total_cycles": true, "avg_cadence": true, "max_cadence": true,
	"avg_fractional_cadence": true, "max_fractional_cadence": true,
	"training_stress_score": true, "intensity_factor": true,
	"threshold_power": true, "time_in_hr_zone": true,
	"total_training_effect": true, "total_ascent": true, "total_descent": true,
}

// builtinMessages is the static catalogue spec.md §6 requires: file_id,
// device_settings, user_profile, zones_target, sport, session, lap,
// record, event, device_info, activity, file_creator, hrv, length, hr,
// segment_lap, field_description, developer_data_id, and the dive_*
// messages.
var builtinMessages = map[uint16]MessageDescriptor{
	0: {Name: "file_id", Fields: map[uint8]FieldDescriptor{
		0: plain("type", ""),
		1: plain("manufacturer", ""),
		2: plain("product", ""),
		3: plain("serial_number", ""),
		4: datetime("time_created"),
		5: plain("number", ""),
		8: plain("product_name", ""),
	}},
	2: {Name: "device_settings", Fields: map[uint8]FieldDescriptor{
		0:  plain("active_time_zone", ""),
		1:  plain("utc_offset", "s"),
		2:  plain("time_offset", "s"),
		36: plain("time_mode", ""),
	}},
	3: {Name: "user_profile", Fields: map[uint8]FieldDescriptor{
		0:  plain("friendly_name", ""),
		1:  plain("gender", ""),
		2:  plain("age", "years"),
		3:  scaled("height", 100, 0, "m"),
		4:  scaled("weight", 10, 0, "kg"),
		5:  plain("language", ""),
		6:  plain("elev_setting", ""),
		7:  plain("weight_setting", ""),
		8:  plain("resting_heart_rate", "bpm"),
		9:  plain("default_max_running_heart_rate", "bpm"),
		10: plain("default_max_biking_heart_rate", "bpm"),
		11: plain("default_max_heart_rate", "bpm"),
	}},
	7: {Name: "zones_target", Fields: map[uint8]FieldDescriptor{
		1: plain("max_heart_rate", "bpm"),
		2: plain("threshold_heart_rate", "bpm"),
		3: plain("functional_threshold_power", "w"),
		5: plain("hr_calc_type", ""),
		7: plain("pwr_calc_type", ""),
	}},
	12: {Name: "sport", Fields: map[uint8]FieldDescriptor{
		0: plain("sport", ""),
		1: plain("sub_sport", ""),
		3: plain("name", ""),
	}},
	18: {Name: "session", Fields: map[uint8]FieldDescriptor{
		253: datetime("timestamp"),
		2:   datetime("start_time"),
		7:   scaled("total_elapsed_time", 1000, 0, "s"),
		8:   scaled("total_timer_time", 1000, 0, "s"),
		9:   scaled("total_distance", 100, 0, "m"),
		14:  scaled("avg_speed", 1000, 0, "m/s"),
		15:  scaled("max_speed", 1000, 0, "m/s"),
		16:  plain("avg_heart_rate", "bpm"),
		17:  plain("max_heart_rate", "bpm"),
		18:  plain("avg_cadence", "rpm"),
		19:  plain("max_cadence", "rpm"),
		20:  plain("avg_power", "w"),
		21:  plain("max_power", "w"),
		22:  plain("total_ascent", "m"),
		23:  plain("total_descent", "m"),
		24:  plain("total_calories", "kcal"),
		34:  plain("avg_fractional_cadence", "rpm"),
		35:  plain("max_fractional_cadence", "rpm"),
		41:  plain("total_cycles", "cycles"),
		42:  plain("total_work", "j"),
		48:  plain("normalized_power", "w"),
		57:  plain("threshold_power", "w"),
		63:  scaled("avg_temperature", 1, 0, "c"),
		64:  scaled("max_temperature", 1, 0, "c"),
		71:  plain("time_in_hr_zone", "s"),
		72:  scaled("intensity_factor", 1000, 0, ""),
		73:  scaled("training_stress_score", 10, 0, ""),
		111: plain("total_training_effect", ""),
	}},
	19: {Name: "lap", Fields: map[uint8]FieldDescriptor{
		253: datetime("timestamp"),
		2:   datetime("start_time"),
		7:   scaled("total_elapsed_time", 1000, 0, "s"),
		8:   scaled("total_timer_time", 1000, 0, "s"),
		9:   scaled("total_distance", 100, 0, "m"),
		13:  scaled("avg_speed", 1000, 0, "m/s"),
		14:  scaled("max_speed", 1000, 0, "m/s"),
		15:  plain("avg_heart_rate", "bpm"),
		16:  plain("max_heart_rate", "bpm"),
		17:  plain("avg_cadence", "rpm"),
		18:  plain("max_cadence", "rpm"),
		19:  plain("avg_power", "w"),
		20:  plain("max_power", "w"),
		21:  plain("total_ascent", "m"),
		22:  plain("total_descent", "m"),
		42:  plain("total_work", "j"),
	}},
	20: {Name: "record", Fields: map[uint8]FieldDescriptor{
		253: datetime("timestamp"),
		0:   scaled("position_lat", 1, 0, "semicircles"),
		1:   scaled("position_long", 1, 0, "semicircles"),
		2:   scaled("altitude", 5, 500, "m"),
		3:   plain("heart_rate", "bpm"),
		4:   plain("cadence", "rpm"),
		5:   scaled("distance", 100, 0, "m"),
		6:   scaled("speed", 1000, 0, "m/s"),
		7:   plain("power", "w"),
		9:   scaled("grade", 100, 0, "%"),
		13:  plain("temperature", "c"),
		30:  plain("left_right_balance", ""),
		39:  scaled("vertical_oscillation", 10, 0, "mm"),
		78:  scaled("enhanced_altitude", 5, 500, "m"),
		73:  scaled("enhanced_speed", 1000, 0, "m/s"),
	}},
	21: {Name: "event", Fields: map[uint8]FieldDescriptor{
		253: datetime("timestamp"),
		0:   plain("event", ""),
		1:   plain("event_type", ""),
		2:   plain("data16", ""),
		3:   plain("data", ""),
		4:   plain("event_group", ""),
	}},
	23: {Name: "device_info", Fields: map[uint8]FieldDescriptor{
		253: datetime("timestamp"),
		0:   plain("device_index", ""),
		1:   plain("device_type", ""),
		2:   plain("manufacturer", ""),
		3:   plain("serial_number", ""),
		4:   plain("product", ""),
		5:   scaled("software_version", 100, 0, ""),
	}},
	34: {Name: "activity", Fields: map[uint8]FieldDescriptor{
		253: datetime("timestamp"),
		0:   scaled("total_timer_time", 1000, 0, "s"),
		1:   plain("num_sessions", ""),
		2:   plain("type", ""),
		3:   plain("event", ""),
		4:   plain("event_type", ""),
		5:   datetime("local_timestamp"),
	}},
	49: {Name: "file_creator", Fields: map[uint8]FieldDescriptor{
		0: plain("software_version", ""),
		1: plain("hardware_version", ""),
	}},
	78: {Name: "hrv", Fields: map[uint8]FieldDescriptor{
		0: plain("time", "s"),
	}},
	101: {Name: "length", Fields: map[uint8]FieldDescriptor{
		253: datetime("timestamp"),
		2:   datetime("start_time"),
		3:   scaled("total_elapsed_time", 1000, 0, "s"),
		4:   scaled("total_timer_time", 1000, 0, "s"),
		5:   plain("total_strokes", ""),
		6:   scaled("avg_speed", 1000, 0, "m/s"),
		9:   plain("avg_swimming_cadence", "strokes/min"),
	}},
	132: {Name: "hr", Fields: map[uint8]FieldDescriptor{
		253: datetime("timestamp"),
		0:   scaled("fractional_timestamp", 1000, 0, "s"),
		1:   scaled("time256", 256, 0, "s"),
		6:   scaled("event_timestamp", 1024, 0, "s"),
		9:   plain("filtered_bpm", "bpm"),
		10:  plain("event_timestamp_12", ""),
	}},
	142: {Name: "segment_lap", Fields: map[uint8]FieldDescriptor{
		253: datetime("timestamp"),
		2:   datetime("start_time"),
		7:   scaled("total_elapsed_time", 1000, 0, "s"),
		8:   scaled("total_timer_time", 1000, 0, "s"),
		9:   scaled("total_distance", 100, 0, "m"),
		13:  scaled("avg_speed", 1000, 0, "m/s"),
		14:  scaled("max_speed", 1000, 0, "m/s"),
		15:  plain("avg_heart_rate", "bpm"),
		16:  plain("max_heart_rate", "bpm"),
	}},
	206: {Name: "field_description", Fields: map[uint8]FieldDescriptor{
		0: plain("developer_data_index", ""),
		1: plain("field_definition_number", ""),
		2: plain("fit_base_type_id", ""),
		3: plain("field_name", ""),
		6: plain("native_mesg_num", ""),
		7: plain("native_field_num", ""),
		8: plain("units", ""),
	}},
	207: {Name: "developer_data_id", Fields: map[uint8]FieldDescriptor{
		0: plain("developer_id", ""),
		1: plain("application_id", ""),
		2: plain("manufacturer_id", ""),
		3: plain("developer_data_index", ""),
		4: plain("application_version", ""),
	}},
	258: {Name: "dive_settings", Fields: map[uint8]FieldDescriptor{
		0: plain("name", ""),
		1: plain("model", ""),
		2: plain("gf_low", "%"),
		3: plain("gf_high", "%"),
		4: plain("water_type", ""),
	}},
	259: {Name: "dive_gas", Fields: map[uint8]FieldDescriptor{
		0: plain("helium_content", "%"),
		1: plain("oxygen_content", "%"),
		2: plain("status", ""),
	}},
	262: {Name: "dive_alarm", Fields: map[uint8]FieldDescriptor{
		0: plain("depth", "m"),
		1: plain("time", "s"),
		2: plain("enabled", ""),
		3: plain("alarm_type", ""),
	}},
	268: {Name: "dive_summary", Fields: map[uint8]FieldDescriptor{
		253: datetime("timestamp"),
		2:   scaled("avg_depth", 1000, 0, "m"),
		3:   scaled("max_depth", 1000, 0, "m"),
		4:   plain("surface_interval", "s"),
		11:  scaled("bottom_time", 1000, 0, "s"),
	}},
}
