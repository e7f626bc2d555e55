package models

// Network code tables, keyed by the raw wire value

// UNICOM and Guard are the frequencies with special meaning for voice switching
const (
	FrequencyUNICOM = "122.800"
	FrequencyGuard  = "121.500"
)

var ClientTypes = map[string]string{
	string(ClientTypeATC):      "ATC or Observer connections",
	string(ClientTypePilot):    "Pilot connections",
	string(ClientTypeFollowMe): "Follow Me Car connections",
}

var FacilityTypes = map[string]string{
	"0": "Observer",
	"1": "Flight Information",
	"2": "Delivery",
	"3": "Ground",
	"4": "Tower",
	"5": "Approach",
	"6": "ACC",
	"7": "Departure",
}

var AdministrativeRatings = map[string]string{
	"0":  "Suspended",
	"1":  "Observer",
	"2":  "User",
	"11": "Supervisor",
	"12": "Administrator",
}

var PilotRatings = map[string]string{
	"1":  "Observer",
	"2":  "Basic Flight Student (FS1)",
	"3":  "Flight Student (FS2)",
	"4":  "Advanced Flight Student (FS3)",
	"5":  "Private Pilot (PP)",
	"6":  "Senior Private Pilot (SPP)",
	"7":  "Commercial Pilot (CP)",
	"8":  "Airline Transport Pilot (ATP)",
	"9":  "Senior Flight Instructor (SFI)",
	"10": "Chief Flight Instructor (CFI)",
}

var Simulators = map[string]string{
	"0":  "Unknown",
	"1":  "Microsoft Flight Simulator 95",
	"2":  "Microsoft Flight Simulator 98",
	"3":  "Microsoft Combat Flight Simulator",
	"4":  "Microsoft Flight Simulator 2000",
	"5":  "Microsoft Combat Flight Simulator 2",
	"6":  "Microsoft Flight Simulator 2002",
	"7":  "Microsoft Combat Flight Simulator 3",
	"8":  "Microsoft Flight Simulator 2004",
	"9":  "Microsoft Flight Simulator X",
	"11": "X-Plane (unknown version)",
	"12": "X-Plane 8.x",
	"13": "X-Plane 9.x",
	"14": "X-Plane 10.x",
	"15": "PS1",
	"16": "X-Plane 11.x",
	"17": "X-Plane 12.x",
	"20": "Fly!",
	"21": "Fly! 2",
	"25": "FlightGear",
	"30": "Prepar3D 1.x",
}

// lookup returns the description for code, or "Unknown (code)" when the table has no entry
func lookup(table map[string]string, code string) string {
	if name, ok := table[code]; ok {
		return name
	}
	if code == "" {
		return ""
	}
	return "Unknown (" + code + ")"
}
