package treadmill

import (
	"fmt"
	"log"
	"time"

	"github.com/ldavies/treadmill-console/internal/bt"
	"github.com/ldavies/treadmill-console/internal/ftms"
)

const connectTimeout = 10 * time.Second

// controlSettleDelay is the pause between Request Control and Start/Resume.
// The Horizon firmware drops the start command if it arrives before the
// control request has been processed.
const controlSettleDelay = 500 * time.Millisecond

// DeviceHandler owns the FTMS conversation with the connected treadmill:
// connecting, subscribing to Treadmill Data, and writing Control Point
// commands.
type DeviceHandler struct {
	model   *Model
	manager bt.ManagerInterface
	logger  *log.Logger
}

func NewDeviceHandler(model *Model, manager bt.ManagerInterface, logger *log.Logger) *DeviceHandler {
	if model == nil {
		panic("DeviceHandler: model cannot be nil")
	}
	if manager == nil {
		panic("DeviceHandler: manager cannot be nil")
	}
	if logger == nil {
		panic("DeviceHandler: logger cannot be nil")
	}
	return &DeviceHandler{
		model:   model,
		manager: manager,
		logger:  logger,
	}
}

// StartScan begins scanning for treadmills advertising the FTMS service.
// deviceName further narrows results to an exact advertised name; empty
// matches any FTMS machine.
func (h *DeviceHandler) StartScan(deviceName string) {
	h.logger.Printf("Starting BLE scan (name filter %q)...", deviceName)
	h.manager.StartScan(bt.ScanFilter{
		ServiceUUIDs: []string{ftms.ServiceUUIDFTMS},
		Name:         deviceName,
	})
}

func (h *DeviceHandler) StopScan() error {
	if err := h.manager.StopScan(); err != nil {
		h.logger.Printf("DeviceHandler: Error stopping scan: %v", err)
		return err
	}
	h.logger.Printf("Scanning stopped")
	return nil
}

func (h *DeviceHandler) IsScanning() bool {
	return h.manager.IsScanning()
}

// Connect connects to the treadmill at address, subscribes to Treadmill Data
// and Control Point responses, and acquires belt control.
func (h *DeviceHandler) Connect(address string) error {
	dev := h.manager.DeviceByAddress(address)
	if dev == nil {
		return fmt.Errorf("device not found: %s", address)
	}

	deviceName := fmt.Sprintf("%s (%s)", dev.LocalName(), dev.Address())

	if !dev.IsConnected() {
		h.logger.Printf("Connecting to treadmill: %s", deviceName)
		if err := h.manager.Connect(dev); err != nil {
			return fmt.Errorf("failed to initiate connection: %w", err)
		}
		if err := dev.WaitForConnection(connectTimeout); err != nil {
			return fmt.Errorf("connection timeout: %w", err)
		}
		h.logger.Printf("DeviceHandler: Connected to %s", deviceName)
	}

	err := dev.EnableNotifications(ftms.ServiceUUIDFTMS, ftms.CharUUIDTreadmillData, h.handleTreadmillData)
	if err != nil {
		return fmt.Errorf("failed to enable treadmill data notifications: %w", err)
	}
	h.logger.Printf("Subscribed to Treadmill Data")

	// Control Point responses arrive as indications. Some firmware never
	// sends them; failure here is not fatal.
	err = dev.EnableNotifications(ftms.ServiceUUIDFTMS, ftms.CharUUIDFTMSControlPoint, h.handleControlPointResponse)
	if err != nil {
		h.logger.Printf("DeviceHandler: Control Point indications unavailable: %v", err)
	}

	h.model.SetSession(Session{
		Address:   address,
		Name:      dev.LocalName(),
		Connected: true,
	})

	if err := h.AcquireControl(); err != nil {
		h.logger.Printf("DeviceHandler: Failed to acquire control: %v", err)
		// The connection stands; control can be retried.
	}
	return nil
}

// AcquireControl requests machine control and starts the belt. The Horizon
// treadmill wants Request Control, a pause, then Start/Resume before it
// accepts any target commands.
func (h *DeviceHandler) AcquireControl() error {
	if err := h.SendCommand(ftms.RequestControl{}); err != nil {
		return fmt.Errorf("request control: %w", err)
	}
	time.Sleep(controlSettleDelay)
	if err := h.SendCommand(ftms.StartOrResume{}); err != nil {
		return fmt.Errorf("start or resume: %w", err)
	}

	session := h.model.GetSession()
	session.ControlGranted = true
	session.BeltStarted = true
	h.model.SetSession(session)
	h.logger.Printf("Treadmill control acquired")
	return nil
}

// Disconnect drops the treadmill connection and clears the session.
func (h *DeviceHandler) Disconnect() error {
	session := h.model.GetSession()
	if !session.Connected {
		return nil
	}

	dev := h.manager.DeviceByAddress(session.Address)
	if dev == nil {
		h.model.SetSession(Session{})
		return fmt.Errorf("device not found: %s", session.Address)
	}

	h.logger.Printf("Disconnecting: %s", dev.LocalName())
	h.model.SetSession(Session{})
	if err := h.manager.Disconnect(dev); err != nil {
		return fmt.Errorf("failed to disconnect: %w", err)
	}
	return nil
}

// SendCommand encodes and writes one Control Point command to the connected
// treadmill.
func (h *DeviceHandler) SendCommand(cmd ftms.Command) error {
	session := h.model.GetSession()
	if !session.Connected {
		return fmt.Errorf("no treadmill connected")
	}

	dev := h.manager.DeviceByAddress(session.Address)
	if dev == nil {
		return fmt.Errorf("device not found: %s", session.Address)
	}

	data := ftms.EncodeCommand(cmd)
	h.logger.Printf("DeviceHandler: Sending %T: %v", cmd, data)
	err := dev.WriteCharacteristicWithoutResponse(ftms.ServiceUUIDFTMS, ftms.CharUUIDFTMSControlPoint, data)
	if err != nil {
		return fmt.Errorf("write control point: %w", err)
	}
	return nil
}

// SetTargetSpeed sets the belt speed in 0.01 km/h units.
func (h *DeviceHandler) SetTargetSpeed(speedCentiKmh uint16) error {
	return h.SendCommand(ftms.SetTargetSpeed{SpeedCentiKmh: speedCentiKmh})
}

// SetTargetInclination sets the incline in 0.1 % units.
func (h *DeviceHandler) SetTargetInclination(inclinationDeciPct int16) error {
	return h.SendCommand(ftms.SetTargetInclination{InclinationDeciPct: inclinationDeciPct})
}

// StartBelt starts or resumes the belt.
func (h *DeviceHandler) StartBelt() error {
	if err := h.SendCommand(ftms.StartOrResume{}); err != nil {
		return err
	}
	session := h.model.GetSession()
	session.BeltStarted = true
	h.model.SetSession(session)
	return nil
}

// StopBelt stops or pauses the belt.
func (h *DeviceHandler) StopBelt() error {
	if err := h.SendCommand(ftms.StopOrPause{}); err != nil {
		return err
	}
	session := h.model.GetSession()
	session.BeltStarted = false
	h.model.SetSession(session)
	return nil
}

// handleTreadmillData decodes one Treadmill Data notification. Truncated
// frames are dropped; the next notification is independent.
func (h *DeviceHandler) handleTreadmillData(buf []byte) {
	data, err := ftms.DecodeTreadmillData(buf)
	if err != nil {
		h.logger.Printf("Treadmill Data: dropping frame: %v (raw: %v)", err, buf)
		return
	}
	h.model.SetTreadmillData(data)
}

// handleControlPointResponse processes Control Point indications confirming
// or rejecting commands.
func (h *DeviceHandler) handleControlPointResponse(buf []byte) {
	if len(buf) < 3 {
		h.logger.Printf("Control Point: response too short: %v", buf)
		return
	}
	if buf[0] != ftms.OpCodeResponseCode {
		h.logger.Printf("Control Point: unexpected op code: 0x%02X", buf[0])
		return
	}

	requestOpCode := buf[1]
	resultCode := buf[2]
	h.logger.Printf("Control Point: %s -> %s", opCodeName(requestOpCode), resultName(resultCode))

	if resultCode == ftms.ResultControlNotPermitted && requestOpCode == ftms.OpCodeRequestControl {
		session := h.model.GetSession()
		session.ControlGranted = false
		h.model.SetSession(session)
		h.logger.Printf("Treadmill rejected control request")
	}
}

func opCodeName(opCode byte) string {
	switch opCode {
	case ftms.OpCodeRequestControl:
		return "Request Control"
	case ftms.OpCodeReset:
		return "Reset"
	case ftms.OpCodeSetTargetSpeed:
		return "Set Target Speed"
	case ftms.OpCodeSetTargetInclination:
		return "Set Target Inclination"
	case ftms.OpCodeStartOrResume:
		return "Start/Resume"
	case ftms.OpCodeStopOrPause:
		return "Stop/Pause"
	case ftms.OpCodeSetTargetedDistance:
		return "Set Targeted Distance"
	case ftms.OpCodeSetTargetedTrainingTime:
		return "Set Targeted Training Time"
	default:
		return fmt.Sprintf("OpCode 0x%02X", opCode)
	}
}

func resultName(result byte) string {
	switch result {
	case ftms.ResultSuccess:
		return "Success"
	case ftms.ResultOpCodeNotSupported:
		return "Op Code Not Supported"
	case ftms.ResultInvalidParameter:
		return "Invalid Parameter"
	case ftms.ResultOperationFailed:
		return "Operation Failed"
	case ftms.ResultControlNotPermitted:
		return "Control Not Permitted"
	default:
		return fmt.Sprintf("Result 0x%02X", result)
	}
}
