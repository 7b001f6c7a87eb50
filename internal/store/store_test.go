package store_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/testbench/inspection-agent/internal/models"
	"github.com/testbench/inspection-agent/internal/store"
	srvErrors "github.com/testbench/inspection-agent/pkg/errors"
)

var _ = Describe("DeviceStore", func() {
	var s *store.Store

	BeforeEach(func() {
		var err error
		s, err = store.NewStore(store.DefaultConfig())
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Get", func() {
		// Given an empty device cache
		// When we look up a device type
		// Then a DeviceNotFoundError is returned
		It("should return DeviceNotFoundError for an unknown device", func() {
			// Act
			_, err := s.Devices().Get(models.DeviceTypePowerMeter)

			// Assert
			Expect(srvErrors.IsResourceNotFoundError(err)).To(BeTrue())
		})
	})

	Describe("Upsert", func() {
		// Given a device already tracked as connected
		// When a registry refresh upserts the same device type
		// Then the locally tracked connection state survives
		It("should preserve local connection state across a refresh", func() {
			// Arrange
			s.Devices().Upsert(models.Device{
				Type: models.DeviceTypePowerMeter,
				Port: "/dev/ttyUSB0",
			})
			s.Devices().SetState(models.DeviceTypePowerMeter, models.ConnectionStateConnected, "")

			// Act
			s.Devices().Upsert(models.Device{
				ID:   "pm-1",
				Type: models.DeviceTypePowerMeter,
				Port: "/dev/ttyUSB1",
			})

			// Assert
			d, err := s.Devices().Get(models.DeviceTypePowerMeter)
			Expect(err).NotTo(HaveOccurred())
			Expect(d.State).To(Equal(models.ConnectionStateConnected))
			Expect(d.ID).To(Equal("pm-1"))
			Expect(d.Port).To(Equal("/dev/ttyUSB1"))
		})
	})

	Describe("SetState", func() {
		// Given a device type never seen from the registry
		// When we set its state
		// Then the device is created on the fly
		It("should create the device when setting state for an unseen type", func() {
			// Act
			s.Devices().SetState(models.DeviceTypeSafetyTester, models.ConnectionStateError, "port busy")

			// Assert
			d, err := s.Devices().Get(models.DeviceTypeSafetyTester)
			Expect(err).NotTo(HaveOccurred())
			Expect(d.State).To(Equal(models.ConnectionStateError))
			Expect(d.LastError).To(Equal("port busy"))
		})
	})
})

var _ = Describe("ModelStore", func() {
	var s *store.Store

	BeforeEach(func() {
		var err error
		s, err = store.NewStore(store.DefaultConfig())
		Expect(err).NotTo(HaveOccurred())
	})

	// Given a fresh store
	// When we list the models
	// Then the built-in catalog is present
	It("should be seeded with the builtin models", func() {
		// Act
		list := s.Models().List()

		// Assert
		Expect(list).To(HaveLen(2))
		Expect(list[0].ID).To(Equal("power-3p"))
		Expect(list[1].ID).To(Equal("safety-3t"))
	})

	// Given the builtin catalog
	// When we look up an unknown model id
	// Then a ModelNotFoundError is returned
	It("should return ModelNotFoundError for an unknown model", func() {
		// Act
		_, err := s.Models().Get("nope")

		// Assert
		Expect(srvErrors.IsResourceNotFoundError(err)).To(BeTrue())
	})

	// Given a model missing required fields
	// When we put it into the catalog
	// Then validation rejects it
	It("should reject a model without phases", func() {
		// Act
		err := s.Models().Put(models.InspectionModel{ID: "x", Name: "x"})

		// Assert
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("SettingsStore", func() {
	var s *store.Store

	BeforeEach(func() {
		var err error
		s, err = store.NewStore(store.DefaultConfig())
		Expect(err).NotTo(HaveOccurred())
	})

	// Given a fresh store
	// When we read the settings
	// Then the defaults are in place
	It("should start with default settings and the default model selected", func() {
		// Act
		settings := s.Settings().Get()

		// Assert
		Expect(settings).To(Equal(models.DefaultTestSettings()))
		Expect(s.Settings().SelectedModelID()).To(Equal("power-3p"))
	})

	// Given default settings
	// When we update them with valid values
	// Then subsequent reads see the new values
	It("should update valid settings", func() {
		// Arrange
		next := models.TestSettings{
			MeasurementDuration: 5 * time.Second,
			WaitDuration:        time.Second,
			Interval:            100 * time.Millisecond,
			CommandTimeout:      2 * time.Second,
		}

		// Act
		err := s.Settings().Update(next)

		// Assert
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Settings().Get()).To(Equal(next))
	})

	// Given default settings
	// When we update them with a non-positive interval
	// Then validation rejects the update and the old values stay
	It("should reject invalid settings", func() {
		// Act
		err := s.Settings().Update(models.TestSettings{})

		// Assert
		Expect(err).To(HaveOccurred())
		Expect(s.Settings().Get()).To(Equal(models.DefaultTestSettings()))
	})
})

var _ = Describe("ResultsStore", func() {
	// Given a results archive at capacity
	// When one more record is added
	// Then the oldest record is evicted
	It("should evict the oldest record at capacity", func() {
		// Arrange
		s, err := store.NewStore(store.Config{ResultsCapacity: 2})
		Expect(err).NotTo(HaveOccurred())

		add := func(id string) {
			s.Results().Add(models.SessionRecord{
				Session:    models.InspectionSession{ID: id},
				Overall:    models.VerdictPass,
				RecordedAt: time.Now(),
			})
		}
		add("a")
		add("b")

		// Act
		add("c")

		// Assert
		records := s.Results().List()
		Expect(records).To(HaveLen(2))
		Expect(records[0].Session.ID).To(Equal("b"))
		Expect(records[1].Session.ID).To(Equal("c"))
	})
})
