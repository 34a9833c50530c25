package motion

import (
	"fmt"
	"math"

	"go.uber.org/zap"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"
)

// MPU9250Config selects the SPI device and chip-select pin for the IMU.
type MPU9250Config struct {
	SPIDevice string `yaml:"spi_device" json:"spiDevice"` // e.g. /dev/spidev0.0
	CSPin     string `yaml:"cs_pin" json:"csPin"`         // e.g. "18"
}

// MPU9250Backend reads device attitude from an MPU-9250 over SPI using an
// accelerometer-only tilt estimate. Yaw stays zero: the magnetometer is not
// fused here.
type MPU9250Backend struct {
	log *zap.Logger
	imu *mpu9250.MPU9250
}

// NewMPU9250Backend initializes the IMU. Initialization failure is not an
// error to the caller: the backend reports unavailable and the orientation
// reading stays inactive for the session.
func NewMPU9250Backend(cfg MPU9250Config, log *zap.Logger) *MPU9250Backend {
	b := &MPU9250Backend{log: log.Named("mpu9250")}
	imu, err := initIMU(cfg)
	if err != nil {
		b.log.Warn("imu init failed", zap.String("spi", cfg.SPIDevice), zap.Error(err))
		return b
	}
	b.imu = imu
	b.log.Info("imu ready", zap.String("spi", cfg.SPIDevice), zap.String("cs", cfg.CSPin))
	return b
}

func initIMU(cfg MPU9250Config) (*mpu9250.MPU9250, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	cs := gpioreg.ByName(cfg.CSPin)
	if cs == nil {
		return nil, fmt.Errorf("CS pin %q not found", cfg.CSPin)
	}
	tr, err := mpu9250.NewSpiTransport(cfg.SPIDevice, cs)
	if err != nil {
		return nil, fmt.Errorf("spi transport: %w", err)
	}
	imu, err := mpu9250.New(tr)
	if err != nil {
		return nil, fmt.Errorf("new device: %w", err)
	}
	if err := imu.Init(); err != nil {
		return nil, fmt.Errorf("device init: %w", err)
	}
	return imu, nil
}

func (b *MPU9250Backend) Name() string { return "MPU-9250" }

func (b *MPU9250Backend) Available() bool { return b.imu != nil }

// Sample reads the accelerometer and derives attitude via the standard tilt
// formulas:
//
//	roll  = atan2(ay, az)
//	pitch = atan2(-ax, sqrt(ay² + az²))
//
// Units cancel out; only the ratios matter.
func (b *MPU9250Backend) Sample() (Attitude, error) {
	if b.imu == nil {
		return Attitude{}, fmt.Errorf("mpu9250: not initialized")
	}
	ax, err := b.imu.GetAccelerationX()
	if err != nil {
		return Attitude{}, fmt.Errorf("acc X: %w", err)
	}
	ay, err := b.imu.GetAccelerationY()
	if err != nil {
		return Attitude{}, fmt.Errorf("acc Y: %w", err)
	}
	az, err := b.imu.GetAccelerationZ()
	if err != nil {
		return Attitude{}, fmt.Errorf("acc Z: %w", err)
	}

	fx, fy, fz := float64(ax), float64(ay), float64(az)
	return Attitude{
		Pitch: math.Atan2(-fx, math.Sqrt(fy*fy+fz*fz)),
		Roll:  math.Atan2(fy, fz),
		Yaw:   0,
	}, nil
}
