package gocbf

import (
	"time"

	"gopkg.in/ini.v1"
)

// ConnectionSettings is the user tunable part of a session, loaded
// from an ini profile. Missing keys keep their defaults, so a partial
// profile is fine.
type ConnectionSettings struct {
	ReadTimeout           time.Duration
	WriteTimeout          time.Duration
	TesterPresentInterval time.Duration

	Baud      uint32
	StMin     uint8
	BlockSize uint8

	ObdRequestID  uint32
	ObdResponseID uint32
}

// DefaultConnectionSettings matches the ECU comparams most vehicles
// ship with : 500kbit bus, 1s timeouts, 2s keep alive, OBD functional
// addressing on 0x7DF/0x7E8
func DefaultConnectionSettings() ConnectionSettings {
	return ConnectionSettings{
		ReadTimeout:           defaultReadTimeout,
		WriteTimeout:          defaultWriteTimeout,
		TesterPresentInterval: defaultTesterInterval,
		Baud:                  500000,
		StMin:                 20,
		BlockSize:             8,
		ObdRequestID:          0x7DF,
		ObdResponseID:         0x7E8,
	}
}

// LoadConnectionSettings reads a profile file with [engine], [isotp]
// and [obd] sections
func LoadConnectionSettings(path string) (ConnectionSettings, error) {
	settings := DefaultConnectionSettings()
	file, err := ini.Load(path)
	if err != nil {
		return settings, err
	}
	if section := file.Section("engine"); section != nil {
		if key, err := section.GetKey("read_timeout_ms"); err == nil {
			if v, err := key.Int(); err == nil && v > 0 {
				settings.ReadTimeout = time.Duration(v) * time.Millisecond
			}
		}
		if key, err := section.GetKey("write_timeout_ms"); err == nil {
			if v, err := key.Int(); err == nil && v > 0 {
				settings.WriteTimeout = time.Duration(v) * time.Millisecond
			}
		}
		if key, err := section.GetKey("tester_present_interval_ms"); err == nil {
			if v, err := key.Int(); err == nil && v > 0 {
				settings.TesterPresentInterval = time.Duration(v) * time.Millisecond
			}
		}
	}
	if section := file.Section("isotp"); section != nil {
		if key, err := section.GetKey("baudrate"); err == nil {
			if v, err := key.Uint(); err == nil && v > 0 {
				settings.Baud = uint32(v)
			}
		}
		if key, err := section.GetKey("st_min"); err == nil {
			if v, err := key.Uint(); err == nil && v <= 0xFF {
				settings.StMin = uint8(v)
			}
		}
		if key, err := section.GetKey("block_size"); err == nil {
			if v, err := key.Uint(); err == nil && v <= 0xFF {
				settings.BlockSize = uint8(v)
			}
		}
	}
	if section := file.Section("obd"); section != nil {
		if key, err := section.GetKey("request_id"); err == nil {
			if v, err := key.Uint(); err == nil {
				settings.ObdRequestID = uint32(v)
			}
		}
		if key, err := section.GetKey("response_id"); err == nil {
			if v, err := key.Uint(); err == nil {
				settings.ObdResponseID = uint32(v)
			}
		}
	}
	return settings, nil
}

// EngineConfig builds the session engine configuration for one ECU
// address pair
func (settings ConnectionSettings) EngineConfig(sendID uint32, recvID uint32) EngineConfig {
	return EngineConfig{
		IsoTp: IsoTpConfig{
			Baud:      settings.Baud,
			SendID:    sendID,
			RecvID:    recvID,
			StMin:     settings.StMin,
			BlockSize: settings.BlockSize,
		},
		ReadTimeout:           settings.ReadTimeout,
		WriteTimeout:          settings.WriteTimeout,
		TesterPresentInterval: settings.TesterPresentInterval,
	}
}

// ObdConfig builds the ISO-TP configuration for the OBD functional
// address
func (settings ConnectionSettings) ObdConfig() IsoTpConfig {
	return IsoTpConfig{
		Baud:   settings.Baud,
		SendID: settings.ObdRequestID,
		RecvID: settings.ObdResponseID,
	}
}
