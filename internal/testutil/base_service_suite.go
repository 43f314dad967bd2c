package testutil

import (
	"context"
	"time"

	"github.com/ledgerline/ledgerline/internal/clock"
	"github.com/ledgerline/ledgerline/internal/config"
	"github.com/ledgerline/ledgerline/internal/domain/client"
	"github.com/ledgerline/ledgerline/internal/domain/creditnote"
	"github.com/ledgerline/ledgerline/internal/domain/invoice"
	"github.com/ledgerline/ledgerline/internal/logger"
	"github.com/ledgerline/ledgerline/internal/validator"
	"github.com/stretchr/testify/suite"
)

// Stores holds all the repository interfaces for testing
type Stores struct {
	InvoiceRepo    invoice.Repository
	CreditNoteRepo creditnote.Repository
	ClientRepo     client.Repository
}

// BaseServiceTestSuite provides common functionality for all service test suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx        context.Context
	stores     Stores
	dispatcher *CaptureDispatcher
	clock      *clock.Mock
	logger     *logger.Logger
	config     *config.Configuration
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	validator.NewValidator()

	s.config = config.GetDefaultConfig()

	var err error
	s.logger, err = logger.NewLogger(s.config)
	if err != nil {
		s.T().Fatalf("failed to create logger: %v", err)
	}
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.ctx = SetupContext()
	s.stores = Stores{
		InvoiceRepo:    NewInMemoryInvoiceStore(),
		CreditNoteRepo: NewInMemoryCreditNoteStore(),
		ClientRepo:     NewInMemoryClientStore(),
	}
	s.dispatcher = NewCaptureDispatcher()
	s.clock = clock.NewMock(time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC))
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.stores.InvoiceRepo.(*InMemoryInvoiceStore).Clear()
	s.stores.CreditNoteRepo.(*InMemoryCreditNoteStore).Clear()
	s.stores.ClientRepo.(*InMemoryClientStore).Clear()
	s.dispatcher.Clear()
}

// GetContext returns the test context
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// GetStores returns the test repositories
func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

// GetDispatcher returns the capture dispatcher
func (s *BaseServiceTestSuite) GetDispatcher() *CaptureDispatcher {
	return s.dispatcher
}

// GetClock returns the mock clock
func (s *BaseServiceTestSuite) GetClock() *clock.Mock {
	return s.clock
}

// GetLogger returns the test logger
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

// GetConfig returns the test configuration
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}
