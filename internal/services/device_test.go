package services_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/testbench/inspection-agent/internal/models"
	"github.com/testbench/inspection-agent/internal/services"
	"github.com/testbench/inspection-agent/internal/store"
	srvErrors "github.com/testbench/inspection-agent/pkg/errors"
)

var _ = Describe("DeviceService", func() {
	var (
		ctx     context.Context
		gateway *fakeDeviceGateway
		st      *store.Store
		srv     *services.DeviceService
	)

	BeforeEach(func() {
		ctx = context.Background()
		gateway = &fakeDeviceGateway{}

		var err error
		st, err = store.NewStore(store.DefaultConfig())
		Expect(err).NotTo(HaveOccurred())

		srv = services.NewDeviceService(gateway, st.Devices(), time.Millisecond)
	})

	Describe("Connect", func() {
		// Given a disconnected device
		// When we connect it
		// Then the transport is called and the state becomes CONNECTED
		It("should connect a disconnected device", func() {
			// Act
			device, err := srv.Connect(ctx, models.DeviceTypePowerMeter)

			// Assert
			Expect(err).NotTo(HaveOccurred())
			Expect(device.State).To(Equal(models.ConnectionStateConnected))
			Expect(gateway.connectCalls()).To(Equal([]models.DeviceType{models.DeviceTypePowerMeter}))
		})

		// Given a device already CONNECTED
		// When we connect it again
		// Then no transport call is made and the call succeeds
		It("should be idempotent while connected", func() {
			// Arrange
			_, err := srv.Connect(ctx, models.DeviceTypePowerMeter)
			Expect(err).NotTo(HaveOccurred())

			// Act
			device, err := srv.Connect(ctx, models.DeviceTypePowerMeter)

			// Assert
			Expect(err).NotTo(HaveOccurred())
			Expect(device.State).To(Equal(models.ConnectionStateConnected))
			Expect(gateway.connectCalls()).To(HaveLen(1))
		})

		// Given the transport still holds the device open while the agent
		// does not track it as connected
		// When we connect it
		// Then the service disconnects first, waits the settle delay, and
		// reconnects
		It("should cycle a half-open device before connecting", func() {
			// Arrange
			gateway.registry = []models.Device{{
				ID:    "st-1",
				Type:  models.DeviceTypeSafetyTester,
				State: models.ConnectionStateConnected,
			}}

			// Act
			device, err := srv.Connect(ctx, models.DeviceTypeSafetyTester)

			// Assert
			Expect(err).NotTo(HaveOccurred())
			Expect(device.State).To(Equal(models.ConnectionStateConnected))
			Expect(gateway.disconnectCalls()).To(Equal([]models.DeviceType{models.DeviceTypeSafetyTester}))
			Expect(gateway.connectCalls()).To(Equal([]models.DeviceType{models.DeviceTypeSafetyTester}))
		})

		// Given a transport that refuses the connection
		// When we connect
		// Then a ConnectError is returned and the state is ERROR with the
		// captured message
		It("should record ERROR state when the transport fails", func() {
			// Arrange
			gateway.connectErr = errors.New("port busy")

			// Act
			_, err := srv.Connect(ctx, models.DeviceTypePowerMeter)

			// Assert
			Expect(srvErrors.IsConnectError(err)).To(BeTrue())
			device, err := st.Devices().Get(models.DeviceTypePowerMeter)
			Expect(err).NotTo(HaveOccurred())
			Expect(device.State).To(Equal(models.ConnectionStateError))
			Expect(device.LastError).To(ContainSubstring("port busy"))
		})
	})

	Describe("Disconnect", func() {
		// Given a transport whose teardown fails
		// When we disconnect
		// Then the state is forced to DISCONNECTED regardless
		It("should force DISCONNECTED even when teardown fails", func() {
			// Arrange
			_, err := srv.Connect(ctx, models.DeviceTypePowerMeter)
			Expect(err).NotTo(HaveOccurred())
			gateway.disconnectErr = errors.New("transport gone")

			// Act
			srv.Disconnect(ctx, models.DeviceTypePowerMeter)

			// Assert
			Expect(srv.Status(models.DeviceTypePowerMeter)).To(Equal(models.ConnectionStateDisconnected))
		})
	})

	Describe("List", func() {
		// Given a registry with one managed device
		// When we list with refresh
		// Then the cache is populated from the registry
		It("should refresh the cache from the registry", func() {
			// Arrange
			gateway.registry = []models.Device{{
				ID:   "pm-1",
				Type: models.DeviceTypePowerMeter,
				Port: "/dev/ttyUSB0",
			}}

			// Act
			devices, err := srv.List(ctx, true)

			// Assert
			Expect(err).NotTo(HaveOccurred())
			Expect(devices).To(HaveLen(1))
			Expect(devices[0].ID).To(Equal("pm-1"))
		})

		// Given a failing registry
		// When we list with refresh
		// Then the error is propagated
		It("should propagate registry errors", func() {
			// Arrange
			gateway.listErr = errors.New("driver down")

			// Act
			_, err := srv.List(ctx, true)

			// Assert
			Expect(err).To(HaveOccurred())
		})
	})
})
