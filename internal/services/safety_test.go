package services_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/testbench/inspection-agent/internal/metrics"
	"github.com/testbench/inspection-agent/internal/models"
	"github.com/testbench/inspection-agent/internal/services"
	"github.com/testbench/inspection-agent/internal/store"
	srvErrors "github.com/testbench/inspection-agent/pkg/errors"
	"github.com/testbench/inspection-agent/pkg/scheduler"
	"github.com/testbench/inspection-agent/pkg/scpi"
)

var _ = Describe("SafetyService", func() {
	var (
		ctx        context.Context
		st         *store.Store
		deviceGW   *fakeDeviceGateway
		driverGW   *fakeDriverGateway
		hub        *fakeBroadcaster
		devices    *services.DeviceService
		inspection *services.InspectionService
		commander  *fakeCommander
		pool       *scheduler.Scheduler
		srv        *services.SafetyService
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		st, err = store.NewStore(store.DefaultConfig())
		Expect(err).NotTo(HaveOccurred())

		deviceGW = &fakeDeviceGateway{}
		driverGW = &fakeDriverGateway{}
		hub = &fakeBroadcaster{}
		devices = services.NewDeviceService(deviceGW, st.Devices(), time.Millisecond)
		inspection = services.NewInspectionService(driverGW, devices, st, hub, metrics.New(), 100)

		commander = &fakeCommander{
			responses: map[string]string{
				scpi.CmdDielectricTest: "ACW,1.8kV,0.374mA,0.5mA,PASS",
				scpi.CmdInsulationTest: "IR,0.5kV,1.25MΩ,1.0MΩ,PASS",
				scpi.CmdGroundBondTest: "GB,25A,0.05Ω,0.1Ω,PASS",
			},
			errs: map[string]error{},
		}
		pool = scheduler.NewScheduler(1)
		srv = services.NewSafetyService(inspection, commander, pool)

		_, err = devices.Connect(ctx, models.DeviceTypeSafetyTester)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		_ = inspection.Stop(ctx)
		pool.Close()
	})

	// Given a connected safety tester answering all three checks with PASS
	// When we run the safety inspection
	// Then the session completes PASS with all three phases completed in order
	It("should complete a passing run with all three checks", func() {
		// Act
		err := srv.Start(ctx, "SN-1", "")

		// Assert
		Expect(err).NotTo(HaveOccurred())
		Eventually(func() models.SessionStatus {
			return inspection.Status().Status
		}).Should(Equal(models.SessionStatusCompleted))

		session := inspection.Status()
		Expect(session.OverallVerdict()).To(Equal(models.VerdictPass))
		Expect(session.Phase("dielectric").Verdict).To(Equal(models.VerdictPass))
		Expect(session.Phase("dielectric").Readings[0].Value).To(Equal(0.374))
		Expect(session.Phase("insulation").Verdict).To(Equal(models.VerdictPass))
		Expect(session.Phase("ground_bond").Verdict).To(Equal(models.VerdictPass))

		Expect(commander.sentCommands()).To(Equal([]string{
			scpi.CmdDielectricTest,
			scpi.CmdInsulationTest,
			scpi.CmdGroundBondTest,
		}))
	})

	// Given a safety tester that times out on the insulation check
	// When we run the safety inspection
	// Then that phase fails with the recorded error and the run continues to
	// the ground bond check
	It("should fail the timed-out phase and continue", func() {
		// Arrange
		commander.errs[scpi.CmdInsulationTest] = srvErrors.NewTimeoutError(scpi.CmdInsulationTest, time.Second)

		// Act
		Expect(srv.Start(ctx, "SN-1", "")).To(Succeed())

		// Assert
		Eventually(func() models.SessionStatus {
			return inspection.Status().Status
		}).Should(Equal(models.SessionStatusCompleted))

		session := inspection.Status()
		Expect(session.Phase("insulation").Verdict).To(Equal(models.VerdictFail))
		Expect(session.Phase("insulation").Error).To(ContainSubstring("timed out"))
		Expect(session.Phase("ground_bond").Completed).To(BeTrue())
		Expect(session.OverallVerdict()).To(Equal(models.VerdictFail))
	})

	// Given an instrument answering the dielectric check with a FAIL verdict
	// When we run the safety inspection
	// Then the parsed verdict is kept and the overall result is FAIL
	It("should keep the instrument-judged FAIL verdict", func() {
		// Arrange
		commander.responses[scpi.CmdDielectricTest] = "ACW,1.8kV,0.71mA,0.5mA,FAIL"

		// Act
		Expect(srv.Start(ctx, "SN-1", "")).To(Succeed())

		// Assert
		Eventually(func() models.SessionStatus {
			return inspection.Status().Status
		}).Should(Equal(models.SessionStatusCompleted))

		session := inspection.Status()
		Expect(session.Phase("dielectric").Verdict).To(Equal(models.VerdictFail))
		Expect(session.Phase("dielectric").Readings[0].Value).To(Equal(0.71))
		Expect(session.OverallVerdict()).To(Equal(models.VerdictFail))
	})

	// Given a RUNNING safety run blocked on an outstanding round trip
	// When the operator stops the inspection
	// Then the round trip is interrupted and the session resets to IDLE
	It("should interrupt an outstanding round trip on stop", func() {
		// Arrange
		block := make(chan struct{})
		commander.block = block
		Expect(srv.Start(ctx, "SN-1", "")).To(Succeed())
		Eventually(commander.sentCommands).Should(HaveLen(1))

		// Act
		Expect(inspection.Stop(ctx)).To(Succeed())
		close(block)

		// Assert
		Consistently(func() models.SessionStatus {
			return inspection.Status().Status
		}).Should(Equal(models.SessionStatusIdle))
		Expect(st.History().Merged()).To(BeEmpty())
	})

	// Given a model containing a streamed power phase
	// When we start it on the safety path
	// Then the start is rejected
	It("should reject a model without synchronous test commands", func() {
		// Act
		err := srv.Start(ctx, "SN-1", "power-3p")

		// Assert
		Expect(srvErrors.IsInvalidStateError(err)).To(BeTrue())
		Expect(inspection.Status().Status).To(Equal(models.SessionStatusIdle))
	})

	// Given a safety run already RUNNING
	// When a second safety start arrives
	// Then it is rejected with SessionConflictError
	It("should enforce single flight", func() {
		// Arrange
		block := make(chan struct{})
		defer close(block)
		commander.block = block
		Expect(srv.Start(ctx, "SN-1", "")).To(Succeed())

		// Act
		err := srv.Start(ctx, "SN-2", "")

		// Assert
		Expect(srvErrors.IsSessionConflictError(err)).To(BeTrue())
	})

	Describe("Identify", func() {
		// Given an instrument answering the identity probe
		// When we identify it
		// Then the banner fields are split out
		It("should parse the identity banner", func() {
			// Arrange
			commander.responses[scpi.CmdIdentify] = "SAFETY_TESTER,ST-3000,87654321,2.00"

			// Act
			identity, err := srv.Identify(ctx)

			// Assert
			Expect(err).NotTo(HaveOccurred())
			Expect(identity.Manufacturer).To(Equal("SAFETY_TESTER"))
			Expect(identity.Model).To(Equal("ST-3000"))
			Expect(identity.SerialNumber).To(Equal("87654321"))
			Expect(identity.Firmware).To(Equal("2.00"))
		})
	})
})
