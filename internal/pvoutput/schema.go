package pvoutput

import "github.com/ryabkov82/pvoutput-ingest/internal/ingest"

// StatusColumns are the measurement columns of getstatus records
var StatusColumns = []string{
	"energy_generation_watt_hours",
	"energy_efficiency_kWh_per_kW",
	"inst_power_watt",
	"average_power_watt",
	"normalised_output",
	"energy_consumption_watt_hours",
	"power_consumption_watts",
	"temperature_celsius",
	"voltage",
}

// SearchSchema describes search results, one system per line
var SearchSchema = ingest.Schema{
	Columns: []ingest.Column{
		{Name: "system_name", Type: ingest.TypeString},
		{Name: "system_size_watts", Type: ingest.TypeFloat},
		{Name: "postcode", Type: ingest.TypeString},
		{Name: "orientation", Type: ingest.TypeString},
		{Name: "num_outputs", Type: ingest.TypeInt},
		{Name: "last_output", Type: ingest.TypeString},
		{Name: "system_id", Type: ingest.TypeInt},
		{Name: "panel", Type: ingest.TypeString},
		{Name: "inverter", Type: ingest.TypeString},
		{Name: "distance_km", Type: ingest.TypeFloat},
		{Name: "latitude", Type: ingest.TypeFloat},
		{Name: "longitude", Type: ingest.TypeFloat},
	},
	Key: "system_id",
}

// StatusSchema describes one day of system status. Date and time are
// composed into the datetime key, in the local time of the system.
var StatusSchema = statusSchema()

func statusSchema() ingest.Schema {
	cols := []ingest.Column{
		{Name: "date", Type: ingest.TypeString},
		{Name: "time", Type: ingest.TypeString},
	}
	for _, name := range StatusColumns {
		cols = append(cols, ingest.Column{Name: name, Type: ingest.TypeFloat})
	}
	return ingest.Schema{
		Columns: cols,
		Compose: &ingest.Composition{Name: "datetime", Date: "date", Time: "time"},
		Key:     "datetime",
	}
}

// MetadataSchema describes the first record of getsystem
var MetadataSchema = ingest.Schema{
	Columns: []ingest.Column{
		{Name: "system_name", Type: ingest.TypeString},
		{Name: "system_size_watts", Type: ingest.TypeFloat},
		{Name: "postcode", Type: ingest.TypeString},
		{Name: "number_of_panels", Type: ingest.TypeInt},
		{Name: "panel_power_watts", Type: ingest.TypeFloat},
		{Name: "panel_brand", Type: ingest.TypeString},
		{Name: "num_inverters", Type: ingest.TypeInt},
		{Name: "inverter_power_watts", Type: ingest.TypeFloat},
		{Name: "inverter_brand", Type: ingest.TypeString},
		{Name: "orientation", Type: ingest.TypeString},
		{Name: "array_tilt_degrees", Type: ingest.TypeFloat},
		{Name: "shade", Type: ingest.TypeString},
		{Name: "install_date", Type: ingest.TypeDate},
		{Name: "latitude", Type: ingest.TypeFloat},
		{Name: "longitude", Type: ingest.TypeFloat},
		{Name: "status_interval_minutes", Type: ingest.TypeInt},
		{Name: "number_of_panels_secondary", Type: ingest.TypeInt},
		{Name: "panel_power_watts_secondary", Type: ingest.TypeFloat},
		{Name: "orientation_secondary", Type: ingest.TypeString},
		{Name: "array_tilt_degrees_secondary", Type: ingest.TypeFloat},
	},
	Limit: 1,
}

// StatisticSchema describes the summary line of getstatistic
var StatisticSchema = ingest.Schema{
	Columns: []ingest.Column{
		{Name: "energy_generated_Wh", Type: ingest.TypeFloat},
		{Name: "energy_exported_Wh", Type: ingest.TypeFloat},
		{Name: "average_generation_Wh", Type: ingest.TypeFloat},
		{Name: "minimum_generation_Wh", Type: ingest.TypeFloat},
		{Name: "maximum_generation_Wh", Type: ingest.TypeFloat},
		{Name: "average_efficiency_kWh_per_kW", Type: ingest.TypeFloat},
		{Name: "outputs", Type: ingest.TypeInt},
		{Name: "actual_date_from", Type: ingest.TypeDate},
		{Name: "actual_date_to", Type: ingest.TypeDate},
		{Name: "record_efficiency_kWh_per_kW", Type: ingest.TypeFloat},
		{Name: "record_efficiency_date", Type: ingest.TypeDate},
	},
	Limit: 1,
}
