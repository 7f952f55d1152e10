package nut

// Standard NUT variable names used by the session and decoder.
// https://networkupstools.org/docs/developer-guide.chunked/apas02.html
const (
	VarUPSStatus      = "ups.status"
	VarBatteryCharge  = "battery.charge"
	VarBatteryRuntime = "battery.runtime"
	VarBatteryVoltage = "battery.voltage"
	VarUPSLoad        = "ups.load"
	VarUPSTemperature = "ups.temperature"
	VarUPSMfr         = "ups.mfr"
	VarUPSModel       = "ups.model"
	VarDeviceSerial   = "device.serial"
)
