package services_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/testbench/inspection-agent/internal/metrics"
	"github.com/testbench/inspection-agent/internal/models"
	"github.com/testbench/inspection-agent/internal/services"
	"github.com/testbench/inspection-agent/internal/store"
	srvErrors "github.com/testbench/inspection-agent/pkg/errors"
)

func fptr(v float64) *float64 { return &v }

var _ = Describe("InspectionService", func() {
	var (
		ctx      context.Context
		cancel   context.CancelFunc
		st       *store.Store
		deviceGW *fakeDeviceGateway
		driverGW *fakeDriverGateway
		hub      *fakeBroadcaster
		devices  *services.DeviceService
		srv      *services.InspectionService
	)

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())

		var err error
		st, err = store.NewStore(store.DefaultConfig())
		Expect(err).NotTo(HaveOccurred())

		deviceGW = &fakeDeviceGateway{}
		driverGW = &fakeDriverGateway{}
		hub = &fakeBroadcaster{}
		devices = services.NewDeviceService(deviceGW, st.Devices(), time.Millisecond)
		srv = services.NewInspectionService(driverGW, devices, st, hub, metrics.New(), 100)

		_, err = devices.Connect(ctx, models.DeviceTypePowerMeter)
		Expect(err).NotTo(HaveOccurred())
		_, err = devices.Connect(ctx, models.DeviceTypeSafetyTester)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		cancel()
	})

	Describe("Start", func() {
		// Given an idle session
		// When we start an inspection
		// Then the session is RUNNING and the driver received the start
		// command with the configured timings
		It("should start an inspection with the configured timings", func() {
			// Act
			err := srv.Start(ctx, "ABC123", "power-3p")

			// Assert
			Expect(err).NotTo(HaveOccurred())
			session := srv.Status()
			Expect(session.Status).To(Equal(models.SessionStatusRunning))
			Expect(session.Barcode).To(Equal("ABC123"))
			Expect(session.ID).NotTo(BeEmpty())

			starts := driverGW.startCalls()
			Expect(starts).To(HaveLen(1))
			Expect(starts[0].Barcode).To(Equal("ABC123"))
			Expect(starts[0].ModelID).To(Equal("power-3p"))
			Expect(starts[0].MeasurementDuration).To(Equal(10.0))
			Expect(starts[0].WaitDuration).To(Equal(2.0))
			Expect(starts[0].IntervalSeconds).To(Equal(0.25))
		})

		// Given a RUNNING session
		// When a second start arrives
		// Then it is rejected with SessionConflictError and the running
		// session is untouched
		It("should reject a second start while RUNNING", func() {
			// Arrange
			Expect(srv.Start(ctx, "ABC123", "power-3p")).To(Succeed())

			// Act
			err := srv.Start(ctx, "XYZ789", "power-3p")

			// Assert
			Expect(srvErrors.IsSessionConflictError(err)).To(BeTrue())
			Expect(srv.Status().Barcode).To(Equal("ABC123"))
			Expect(driverGW.startCalls()).To(HaveLen(1))
		})

		// Given a model whose instrument is not connected
		// When we start
		// Then the start is rejected and the session stays IDLE
		It("should reject a start when the instrument is not connected", func() {
			// Arrange
			devices.Disconnect(ctx, models.DeviceTypePowerMeter)

			// Act
			err := srv.Start(ctx, "ABC123", "power-3p")

			// Assert
			Expect(srvErrors.IsInvalidStateError(err)).To(BeTrue())
			Expect(srv.Status().Status).To(Equal(models.SessionStatusIdle))
		})

		// Given an unknown model id
		// When we start
		// Then a ResourceNotFoundError is returned
		It("should reject an unknown model", func() {
			// Act
			err := srv.Start(ctx, "ABC123", "nope")

			// Assert
			Expect(srvErrors.IsResourceNotFoundError(err)).To(BeTrue())
		})

		// Given a driver that refuses the start command
		// When we start
		// Then the error is returned and the session ends in ERROR
		It("should end in ERROR when the driver start fails", func() {
			// Arrange
			driverGW.startErr = errors.New("driver down")

			// Act
			err := srv.Start(ctx, "ABC123", "power-3p")

			// Assert
			Expect(err).To(HaveOccurred())
			Expect(srv.Status().Status).To(Equal(models.SessionStatusError))
		})
	})

	Describe("Stop", func() {
		// Given a RUNNING session
		// When we stop it
		// Then local state resets to IDLE and the remote stop is issued
		It("should reset to IDLE and issue the remote stop", func() {
			// Arrange
			Expect(srv.Start(ctx, "ABC123", "power-3p")).To(Succeed())

			// Act
			err := srv.Stop(ctx)

			// Assert
			Expect(err).NotTo(HaveOccurred())
			Expect(srv.Status().Status).To(Equal(models.SessionStatusIdle))
			Expect(driverGW.stopCalls()).To(Equal(1))
		})

		// Given an idle session
		// When we stop
		// Then nothing happens and no remote stop is issued
		It("should be a no-op while IDLE", func() {
			// Act
			err := srv.Stop(ctx)

			// Assert
			Expect(err).NotTo(HaveOccurred())
			Expect(driverGW.stopCalls()).To(BeZero())
		})

		// Given a driver whose stop command fails
		// When we stop a RUNNING session
		// Then the local reset happens anyway and no error surfaces
		It("should reset locally even when the remote stop fails", func() {
			// Arrange
			Expect(srv.Start(ctx, "ABC123", "power-3p")).To(Succeed())
			driverGW.stopErr = errors.New("driver down")

			// Act
			err := srv.Stop(ctx)

			// Assert
			Expect(err).NotTo(HaveOccurred())
			Expect(srv.Status().Status).To(Equal(models.SessionStatusIdle))
		})

		// Given a session left in a terminal state
		// When we stop
		// Then the state clears to IDLE without a remote stop
		It("should clear a terminal state to IDLE", func() {
			// Arrange
			driverGW.startErr = errors.New("driver down")
			Expect(srv.Start(ctx, "ABC123", "power-3p")).NotTo(Succeed())
			Expect(srv.Status().Status).To(Equal(models.SessionStatusError))

			// Act
			err := srv.Stop(ctx)

			// Assert
			Expect(err).NotTo(HaveOccurred())
			Expect(srv.Status().Status).To(Equal(models.SessionStatusIdle))
			Expect(driverGW.stopCalls()).To(BeZero())
		})
	})

	Describe("event handling", func() {
		var runDone chan struct{}

		BeforeEach(func() {
			runDone = make(chan struct{})
			go func() {
				defer close(runDone)
				_ = srv.Run(ctx)
			}()
		})

		AfterEach(func() {
			cancel()
			Eventually(runDone).Should(BeClosed())
		})

		// Given an idle session with the power model selected
		// When the full ABC123 event sequence arrives with P2 out of range
		// Then the session completes with P2 FAIL and overall FAIL
		It("should run the ABC123 scenario to COMPLETED with overall FAIL", func() {
			// Act
			srv.Enqueue(mkEvent(models.EventBarcodeScanned, models.BarcodeScannedData{Barcode: "ABC123"}))

			Eventually(func() models.SessionStatus {
				return srv.Status().Status
			}).Should(Equal(models.SessionStatusRunning))

			for _, step := range []struct {
				phase string
				value float64
			}{
				{"P1", 50},
				{"P2", 150},
				{"P3", 50},
			} {
				srv.Enqueue(mkEvent(models.EventPhaseUpdate, models.PhaseData{Phase: step.phase}))
				srv.Enqueue(mkEvent(models.EventMeasurementUpdate, models.MeasurementUpdateData{
					Phase: step.phase,
					Value: fptr(step.value),
					Unit:  "W",
				}))
				srv.Enqueue(mkEvent(models.EventPhaseComplete, models.PhaseData{Phase: step.phase}))
			}
			srv.Enqueue(mkEvent(models.EventInspectionComplete, nil))

			// Assert
			Eventually(func() models.SessionStatus {
				return srv.Status().Status
			}).Should(Equal(models.SessionStatusCompleted))

			session := srv.Status()
			Expect(session.OverallVerdict()).To(Equal(models.VerdictFail))
			Expect(session.CurrentPhase).To(BeEmpty())
			Expect(session.Phase("P1").Verdict).To(Equal(models.VerdictPass))
			Expect(session.Phase("P2").Verdict).To(Equal(models.VerdictFail))
			Expect(session.Phase("P3").Verdict).To(Equal(models.VerdictPass))

			snap, err := st.History().Snapshot("P2")
			Expect(err).NotTo(HaveOccurred())
			Expect(snap).To(HaveLen(1))
			Expect(snap[0].Value).To(Equal(150.0))

			records := st.Results().List()
			Expect(records).To(HaveLen(1))
			Expect(records[0].Overall).To(Equal(models.VerdictFail))
		})

		// Given a stopped session
		// When stale measurement events for the previous run arrive
		// Then they are discarded and the session stays IDLE
		It("should discard stray events after stop", func() {
			// Arrange
			Expect(srv.Start(ctx, "ABC123", "power-3p")).To(Succeed())
			srv.Enqueue(mkEvent(models.EventPhaseUpdate, models.PhaseData{Phase: "P1"}))
			Eventually(func() string {
				return srv.Status().CurrentPhase
			}).Should(Equal("P1"))
			Expect(srv.Stop(ctx)).To(Succeed())

			// Act
			srv.Enqueue(mkEvent(models.EventMeasurementUpdate, models.MeasurementUpdateData{
				Phase: "P1",
				Value: fptr(42),
			}))
			srv.Enqueue(mkEvent(models.EventPhaseComplete, models.PhaseData{Phase: "P1"}))

			// Assert
			Consistently(func() models.SessionStatus {
				return srv.Status().Status
			}).Should(Equal(models.SessionStatusIdle))
			Expect(st.History().Merged()).To(BeEmpty())
		})

		// Given a RUNNING session
		// When the stream dies
		// Then the session ends in ERROR with the terminal stream message
		It("should end in ERROR when the stream dies", func() {
			// Arrange
			Expect(srv.Start(ctx, "ABC123", "power-3p")).To(Succeed())

			// Act
			srv.OnStreamError(srvErrors.NewConnectionLostError())

			// Assert
			Eventually(func() models.SessionStatus {
				return srv.Status().Status
			}).Should(Equal(models.SessionStatusError))
			Expect(srv.Status().Error).To(Equal("connection lost — use the reconnect action"))
		})

		// Given a RUNNING session with a raw instrument line in the event
		// When the line cannot be parsed
		// Then a zero FAIL reading is recorded and the session keeps running
		It("should record a zero FAIL reading for a garbled raw line", func() {
			// Arrange
			Expect(srv.Start(ctx, "ABC123", "safety-3t")).To(Succeed())

			// Act
			srv.Enqueue(mkEvent(models.EventMeasurementUpdate, models.MeasurementUpdateData{
				Phase: "dielectric",
				Raw:   "garbage",
			}))

			// Assert
			Eventually(func() []models.Reading {
				return st.History().Merged()
			}).Should(HaveLen(1))

			session := srv.Status()
			Expect(session.Status).To(Equal(models.SessionStatusRunning))
			readings := session.Phase("dielectric").Readings
			Expect(readings).To(HaveLen(1))
			Expect(readings[0].Value).To(BeZero())
			Expect(readings[0].Verdict).To(Equal(models.VerdictFail))
		})

		// Given a RUNNING session
		// When the driver reports the inspection stopped
		// Then the session resets to IDLE
		It("should reset to IDLE on a driver-side stop", func() {
			// Arrange
			Expect(srv.Start(ctx, "ABC123", "power-3p")).To(Succeed())

			// Act
			srv.Enqueue(mkEvent(models.EventInspectionStopped, nil))

			// Assert
			Eventually(func() models.SessionStatus {
				return srv.Status().Status
			}).Should(Equal(models.SessionStatusIdle))
		})
	})
})
