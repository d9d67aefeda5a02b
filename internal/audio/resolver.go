package audio

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// DeviceProvider enumerates host audio devices. It hides the OS-specific
// device naming so resolution can be tested without audio hardware.
type DeviceProvider interface {
	// InputDevices lists every device that can be opened for capture.
	InputDevices() ([]Device, error)

	// DefaultLoopback returns the input device that records the default
	// system output.
	DefaultLoopback() (Device, error)
}

// NoCaptureDeviceError is returned when live mode finds neither a virtual
// cable nor a loopback device.
type NoCaptureDeviceError struct {
	CableErr    error
	LoopbackErr error
}

func (e *NoCaptureDeviceError) Error() string {
	msg := "no usable audio capture device"
	if e.CableErr != nil {
		msg += fmt.Sprintf("; virtual cable: %v", e.CableErr)
	}
	if e.LoopbackErr != nil {
		msg += fmt.Sprintf("; loopback: %v", e.LoopbackErr)
	}
	return msg
}

func (e *NoCaptureDeviceError) Unwrap() []error {
	return []error{e.CableErr, e.LoopbackErr}
}

var errNoCable = errors.New("no device name matches the virtual cable keywords")

// Resolver selects the capture strategy for a session.
type Resolver struct {
	provider DeviceProvider
	keywords []string
	out      io.Writer
}

// NewResolver creates a resolver. Keywords are matched case-insensitively
// against device names; out receives the operator-facing diagnostics.
func NewResolver(provider DeviceProvider, keywords []string, out io.Writer) *Resolver {
	kw := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			kw = append(kw, k)
		}
	}
	return &Resolver{provider: provider, keywords: kw, out: out}
}

// Resolve returns exactly one strategy for mode. In live mode a virtual
// cable is preferred over loopback; if neither is available a
// *NoCaptureDeviceError is returned. Local mode never probes devices.
func (r *Resolver) Resolve(mode Mode) (Strategy, error) {
	switch mode {
	case ModeLocal:
		r.printf("\nModo teste ativado\n")
		r.printf("Ouvindo o microfone padrão do sistema.\n")
		slog.Info("capture strategy selected", "mode", mode, "strategy", "default_microphone")
		return DefaultMicrophone{}, nil
	case ModeLive:
	default:
		return nil, fmt.Errorf("unsupported mode %v", mode)
	}

	r.printf("\nModo entrevista ativado.\n")
	r.printf("Captura de áudio: Tentando Cabo de Áudio Virtual (Principal)\n")

	cable, cableErr := r.findCable()
	if cableErr == nil {
		r.printf("Dispositivo principal: Cabo de áudio virtual encontrado no índice %d: '%s'\n", cable.Index, cable.Name)
		slog.Info("capture strategy selected", "mode", mode, "strategy", "virtual_cable",
			"device_index", cable.Index, "device", cable.Name)
		return VirtualCable{DeviceIndex: cable.Index, DeviceName: cable.Name}, nil
	}

	r.printf("Aviso: Cabo de áudio virtual não encontrado.\n")
	r.printf("Tentando método alternativo (Fallback): Loopback de áudio do sistema.\n")
	slog.Warn("virtual cable unavailable, falling back to loopback", "error", cableErr)

	loop, loopErr := r.provider.DefaultLoopback()
	if loopErr == nil {
		r.printf("Sucesso! Usando fallback via loopback: '%s'\n", loop.Name)
		slog.Info("capture strategy selected", "mode", mode, "strategy", "system_loopback",
			"device_index", loop.Index, "device", loop.Name)
		return SystemLoopback{DeviceIndex: loop.Index, DeviceName: loop.Name}, nil
	}

	r.printf("\nERRO: O método de captura Loopback (fallback) também falhou. (%v)\n", loopErr)
	r.printf("Nenhum método de captura de áudio funcional foi encontrado.\n")
	r.printf("Soluções possíveis:\n")
	r.printf("(Recomendado) Instale um cabo de áudio virtual (ex: VB-CABLE para Windows, BlackHole para macOS).\n")
	r.printf("Verifique se seus drivers de áudio estão funcionando corretamente.\n")
	slog.Error("no capture device", "cable_error", cableErr, "loopback_error", loopErr)
	return nil, &NoCaptureDeviceError{CableErr: cableErr, LoopbackErr: loopErr}
}

func (r *Resolver) findCable() (Device, error) {
	devices, err := r.provider.InputDevices()
	if err != nil {
		r.printf("Ocorreu um erro ao procurar por cabo virtual: %v\n", err)
		return Device{}, fmt.Errorf("listing input devices: %w", err)
	}
	for _, d := range devices {
		name := strings.ToLower(d.Name)
		for _, kw := range r.keywords {
			if strings.Contains(name, kw) {
				return d, nil
			}
		}
	}
	return Device{}, errNoCable
}

func (r *Resolver) printf(format string, args ...any) {
	if r.out != nil {
		fmt.Fprintf(r.out, format, args...)
	}
}
