package gocbf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConnectionSettings(t *testing.T) {
	profile := `
[engine]
read_timeout_ms = 2500
tester_present_interval_ms = 1500

[isotp]
baudrate = 250000
st_min = 10

[obd]
request_id = 2015
response_id = 2024
`
	path := filepath.Join(t.TempDir(), "profile.ini")
	assert.Nil(t, os.WriteFile(path, []byte(profile), 0644))

	settings, err := LoadConnectionSettings(path)
	assert.Nil(t, err)
	assert.Equal(t, 2500*time.Millisecond, settings.ReadTimeout)
	assert.Equal(t, 1500*time.Millisecond, settings.TesterPresentInterval)
	assert.Equal(t, uint32(250000), settings.Baud)
	assert.Equal(t, uint8(10), settings.StMin)

	// Keys not present keep their defaults, and request_id 2015 reads as 0x7DF
	assert.Equal(t, defaultWriteTimeout, settings.WriteTimeout)
	assert.Equal(t, uint8(8), settings.BlockSize)
	assert.Equal(t, uint32(0x7DF), settings.ObdRequestID)
}

func TestLoadConnectionSettingsMissingFile(t *testing.T) {
	settings, err := LoadConnectionSettings("/does/not/exist.ini")
	assert.NotNil(t, err)
	// Defaults still come back usable
	assert.Equal(t, defaultReadTimeout, settings.ReadTimeout)
}

func TestSettingsEngineConfig(t *testing.T) {
	settings := DefaultConnectionSettings()
	cfg := settings.EngineConfig(0x07E0, 0x07E8)
	assert.Equal(t, uint32(0x07E0), cfg.IsoTp.SendID)
	assert.Equal(t, uint32(0x07E8), cfg.IsoTp.RecvID)
	assert.Equal(t, settings.Baud, cfg.IsoTp.Baud)
	assert.Equal(t, settings.ReadTimeout, cfg.ReadTimeout)

	obd := settings.ObdConfig()
	assert.Equal(t, uint32(0x7DF), obd.SendID)
	assert.Equal(t, uint32(0x7E8), obd.RecvID)
}
