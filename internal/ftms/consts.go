package ftms

// Bluetooth Service and Characteristic UUIDs for the Fitness Machine Service
// as exposed by FTMS-capable treadmills.
const (
	ServiceUUIDFTMS           = "00001826-0000-1000-8000-00805f9b34fb"
	CharUUIDTreadmillData     = "00002acd-0000-1000-8000-00805f9b34fb"
	CharUUIDFTMSControlPoint  = "00002ad9-0000-1000-8000-00805f9b34fb"
	CharUUIDFTMSFeature       = "00002acc-0000-1000-8000-00805f9b34fb"
	CharUUIDSupportedSpeedRng = "00002ad4-0000-1000-8000-00805f9b34fb"
)

// FTMS Control Point response format: [0x80, RequestOpCode, ResultCode]
const OpCodeResponseCode byte = 0x80

// FTMS Control Point Result Codes
const (
	ResultSuccess             byte = 0x01
	ResultOpCodeNotSupported  byte = 0x02
	ResultInvalidParameter    byte = 0x03
	ResultOperationFailed     byte = 0x04
	ResultControlNotPermitted byte = 0x05
)
